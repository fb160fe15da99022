package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/Xean001/tubedrop/internal/app"
	"github.com/Xean001/tubedrop/internal/config"
	"github.com/Xean001/tubedrop/internal/core/domain"
	"github.com/Xean001/tubedrop/internal/core/services"
	"github.com/Xean001/tubedrop/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load("tubedrop", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		color.Red("%v", err)
		return 2
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		color.Red("%v", err)
		return 2
	}

	link := strings.TrimSpace(strings.Join(cfg.Args, " "))
	if link == "" {
		link, err = promptLink()
		if err != nil {
			return 1
		}
	}
	if link == "" {
		color.Yellow("No link given.")
		return 2
	}

	if err := os.MkdirAll(cfg.Download.OutputDir, 0o755); err != nil {
		color.Red("Could not create %s: %v", cfg.Download.OutputDir, err)
		return 1
	}

	fd := os.Stdout.Fd()
	opts, bars := progressOptions(app.ServiceOptions(cfg), isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
	var extra []services.Option
	if bars {
		extra = append(extra, services.WithProgress(barReporter{}))
	}
	svc := services.NewDownloaderService(app.NewProvider(cfg), app.NewProcessor(cfg), opts, extra...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, runErr := svc.Run(ctx, link, cfg.Workflow(), cfg.Download.OutputDir)
	printSummary(os.Stdout, outcome, runErr)

	if runErr != nil || len(outcome.Failed) > 0 {
		return 1
	}
	return 0
}

// promptLink asks for a link when none was passed on the command line.
func promptLink() (string, error) {
	rl, err := readline.New(color.BlueString("Enter a video or playlist link: "))
	if err != nil {
		log.WithError(err).Error("failed to initialize readline")
		return "", err
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", err
		}
		log.WithError(err).Error("failed to read link")
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printSummary(w io.Writer, outcome domain.DownloadOutcome, runErr error) {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	skip := color.New(color.FgYellow)

	fmt.Fprintln(w)
	for _, r := range outcome.Succeeded {
		ok.Fprintf(w, "  ✓ %s", r.Title)
		fmt.Fprintf(w, "  %s  %s\n", humanize.Bytes(uint64(r.Size)), r.Path)
	}
	for _, r := range outcome.Failed {
		bad.Fprintf(w, "  ✗ %s", label(r))
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
	for _, r := range outcome.Skipped {
		skip.Fprintf(w, "  - %s (not processed)\n", label(r))
	}

	fmt.Fprintf(w, "\n%d downloaded, %d failed, %d skipped\n",
		len(outcome.Succeeded), len(outcome.Failed), len(outcome.Skipped))
	if runErr != nil {
		bad.Fprintln(w, domain.Message(runErr))
	}
}

func label(r domain.DownloadResult) string {
	if r.Title != "" {
		return r.Title
	}
	return r.ID
}
