package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	log "github.com/sirupsen/logrus"

	"github.com/Xean001/tubedrop/internal/core/domain"
	"github.com/Xean001/tubedrop/internal/core/ports"
)

const (
	DefaultCommand = "ffmpeg"
	DefaultTimeout = 10 * time.Minute

	VideoCodecCopy = "copy"
	AudioCodecAAC  = "aac"
	StrictMode     = "experimental"

	MP3Format  = "mp3"
	MP3Bitrate = "192k"

	// stderr kept for error messages
	maxStderrTail = 512
)

type Options struct {
	Command string
	Timeout time.Duration
	// VerifyOutput probes merged files and rejects outputs without both a
	// video and an audio track.
	VerifyOutput bool
}

type ffmpegProcessor struct {
	command string
	timeout time.Duration
	verify  bool
}

func NewFFmpegProcessor(opts Options) ports.MediaProcessor {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &ffmpegProcessor{
		command: opts.Command,
		timeout: opts.Timeout,
		verify:  opts.VerifyOutput,
	}
}

// MuxVideoAudio copies the video track and re-encodes the audio to AAC.
// Both inputs are removed on every exit path; a failed run also removes
// the partial output. An output that already exists is left untouched.
func (p *ffmpegProcessor) MuxVideoAudio(ctx context.Context, videoFile, audioFile, output string) (err error) {
	defer removeAll(videoFile, audioFile)
	if err := outputFree(output); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			removeAll(output)
		}
	}()

	if err := p.run(ctx, BuildMuxArgs(videoFile, audioFile, output)); err != nil {
		return err
	}
	if p.verify {
		tracks, err := CountTracks(output)
		if err != nil {
			return domain.MuxFailed(0, fmt.Errorf("probing merged file: %w", err))
		}
		if tracks < 2 {
			return domain.MuxFailed(0, fmt.Errorf("merged file has %d track(s), want 2", tracks))
		}
	}
	return nil
}

// ConvertToMP3 transcodes audioFile into output and removes audioFile.
func (p *ffmpegProcessor) ConvertToMP3(ctx context.Context, audioFile, output string) (err error) {
	defer removeAll(audioFile)
	if err := outputFree(output); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			removeAll(output)
		}
	}()
	return p.run(ctx, BuildMP3Args(audioFile, output))
}

// BuildMuxArgs builds the arguments for merging elementary streams.
func BuildMuxArgs(videoFile, audioFile, output string) []string {
	return []string{
		"-i", videoFile,
		"-i", audioFile,
		"-c:v", VideoCodecCopy,
		"-c:a", AudioCodecAAC,
		"-strict", StrictMode,
		output,
	}
}

// BuildMP3Args builds the arguments for the mp3 conversion.
func BuildMP3Args(audioFile, output string) []string {
	return []string{
		"-i", audioFile,
		"-f", MP3Format,
		"-ab", MP3Bitrate,
		"-vn",
		output,
	}
}

func (p *ffmpegProcessor) run(ctx context.Context, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger := log.WithField("command", shellescape.QuoteCommand(cmd.Args))
	logger.Debug("Executing ffmpeg")

	started := time.Now()
	err := cmd.Run()
	if err == nil {
		logger.WithField("took", time.Since(started).Round(time.Millisecond)).Debug("ffmpeg finished")
		return nil
	}

	tail := tailOf(stderr.String())
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		logger.WithField("timeout", p.timeout).Error("ffmpeg timed out")
		return domain.NewError(domain.KindMuxTimeout, p.timeout.String(), err)
	case ctx.Err() != nil:
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logger.WithFields(log.Fields{"exit_code": exitErr.ExitCode(), "stderr": tail}).Error("ffmpeg failed")
		return domain.MuxFailed(exitErr.ExitCode(), err)
	}
	// the binary could not be started at all
	logger.WithError(err).Error("ffmpeg could not be started")
	return domain.MuxFailed(-1, err)
}

// outputFree rejects an output path that is already taken.
func outputFree(output string) error {
	if _, err := os.Lstat(output); err == nil {
		return domain.MuxFailed(0, fmt.Errorf("%s already exists", output))
	} else if !os.IsNotExist(err) {
		return domain.MuxFailed(0, err)
	}
	return nil
}

func tailOf(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrTail {
		return s[len(s)-maxStderrTail:]
	}
	return s
}

func removeAll(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warnf("Could not remove %s", p)
		}
	}
}
