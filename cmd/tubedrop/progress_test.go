package main

import (
	"testing"

	"github.com/Xean001/tubedrop/internal/core/services"
)

func TestProgressOptions(t *testing.T) {
	in := services.Options{Workers: 4, AudioMP3: true}

	opts, bars := progressOptions(in, true)
	if !bars || opts.Workers != 1 || !opts.AudioMP3 {
		t.Errorf("terminal: opts = %+v, bars = %v", opts, bars)
	}

	opts, bars = progressOptions(in, false)
	if bars || opts.Workers != 4 {
		t.Errorf("pipe: opts = %+v, bars = %v", opts, bars)
	}
}
