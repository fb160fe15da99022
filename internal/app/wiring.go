// Package app builds the adapters and the downloader service shared by the
// server and the command-line tool.
package app

import (
	"github.com/Xean001/tubedrop/internal/adapters/ffmpeg"
	"github.com/Xean001/tubedrop/internal/adapters/youtube"
	"github.com/Xean001/tubedrop/internal/adapters/ytdlp"
	"github.com/Xean001/tubedrop/internal/config"
	"github.com/Xean001/tubedrop/internal/core/ports"
	"github.com/Xean001/tubedrop/internal/core/services"
)

// NewProvider returns the video platform backend named by provider.backend.
func NewProvider(cfg *config.Config) ports.MediaProvider {
	if cfg.Provider.Backend == config.BackendYtDlp {
		return ytdlp.NewYtDlpAdapter(ytdlp.Options{
			Command:           cfg.Provider.YtDlpPath,
			Timeout:           cfg.Provider.Timeout.Std(),
			RequestsPerSecond: cfg.Provider.RequestsPerSecond,
			Burst:             cfg.Provider.Burst,
		})
	}
	return youtube.NewYouTubeRepository(youtube.Options{
		Timeout:           cfg.Provider.Timeout.Std(),
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
		Burst:             cfg.Provider.Burst,
	})
}

func NewProcessor(cfg *config.Config) ports.MediaProcessor {
	return ffmpeg.NewFFmpegProcessor(ffmpeg.Options{
		Command:      cfg.FFmpeg.Path,
		Timeout:      cfg.FFmpeg.Timeout.Std(),
		VerifyOutput: cfg.FFmpeg.VerifyOutput,
	})
}

// NewService wires provider and processor into the downloader service.
func NewService(cfg *config.Config, provider ports.MediaProvider, processor ports.MediaProcessor, opts ...services.Option) ports.DownloaderService {
	return services.NewDownloaderService(provider, processor, ServiceOptions(cfg), opts...)
}

func ServiceOptions(cfg *config.Config) services.Options {
	return services.Options{
		Workers:           cfg.Download.Workers,
		PreferProgressive: cfg.Download.PreferProgressive,
		AudioMP3:          cfg.Download.AudioMP3,
	}
}
