package logging

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	log "github.com/sirupsen/logrus"
)

const TimestampFormat = "2006-01-02 15:04:05.000"

// Setup configures the global logrus logger. Text output goes through
// go-colorable so level colors also render on Windows consoles.
func Setup(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetFormatter(Formatter(format))
	log.SetOutput(Output(format))
	return nil
}

func Formatter(format string) log.Formatter {
	if format == "json" {
		return &log.JSONFormatter{TimestampFormat: TimestampFormat}
	}
	return &log.TextFormatter{
		TimestampFormat:        TimestampFormat,
		FullTimestamp:          true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	}
}

func Output(format string) io.Writer {
	if format == "json" {
		return os.Stdout
	}
	return colorable.NewColorableStdout()
}
