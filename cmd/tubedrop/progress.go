package main

import (
	"io"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/Xean001/tubedrop/internal/core/services"
)

// barReporter draws one byte progress bar per retrieved stream.
type barReporter struct{}

func (barReporter) Track(label string, size int64) io.WriteCloser {
	if size <= 0 {
		size = -1
	}
	return progressbar.DefaultBytes(size, label)
}

// progressOptions decides whether bars are drawn. Bars are drawn only on a
// terminal and share one line, so items then run one at a time.
func progressOptions(opts services.Options, terminal bool) (services.Options, bool) {
	if !terminal {
		return opts, false
	}
	if opts.Workers > 1 {
		log.Debugf("Progress bars shown, processing items one at a time instead of %d", opts.Workers)
		opts.Workers = 1
	}
	return opts, true
}
