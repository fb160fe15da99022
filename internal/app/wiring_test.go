package app

import (
	"fmt"
	"testing"

	"github.com/Xean001/tubedrop/internal/config"
)

func TestNewProvider(t *testing.T) {
	tests := map[string]string{
		config.BackendYouTube: "*youtube.youtubeRepo",
		config.BackendYtDlp:   "*ytdlp.ytDlpAdapter",
	}
	for backend, want := range tests {
		cfg := config.Default()
		cfg.Provider.Backend = backend
		if got := fmt.Sprintf("%T", NewProvider(cfg)); got != want {
			t.Errorf("NewProvider(%s) = %s, want %s", backend, got, want)
		}
	}
}

func TestServiceOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Download.Workers = 5
	cfg.Download.AudioMP3 = true

	opts := ServiceOptions(cfg)
	if opts.Workers != 5 || !opts.AudioMP3 || opts.PreferProgressive {
		t.Errorf("ServiceOptions() = %+v", opts)
	}
}
