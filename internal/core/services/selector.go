package services

import (
	"github.com/Xean001/tubedrop/internal/core/domain"
)

// Only mp4 family streams are considered; ffmpeg copies the video track
// as-is, so the container has to match the output.
const selectContainer = "mp4"

// SelectAudio picks the audio-only mp4 stream with the highest bitrate.
// Equal bitrates keep catalog order.
func SelectAudio(item *domain.MediaItem) (*domain.StreamDescriptor, error) {
	var best *domain.StreamDescriptor
	for i := range item.Streams {
		s := &item.Streams[i]
		if s.Kind != domain.StreamAudioOnly || s.Container != selectContainer {
			continue
		}
		if best == nil || s.Bitrate > best.Bitrate {
			best = s
		}
	}
	if best == nil {
		return nil, domain.NewError(domain.KindNoStreamAvailable, "no audio-only "+selectContainer+" stream", nil)
	}
	return best, nil
}

// SelectVideo picks the streams for the video workflow: the first
// progressive stream when preferProgressive is set and one exists,
// otherwise the first video-only and the first audio-only stream.
func SelectVideo(item *domain.MediaItem, preferProgressive bool) (domain.Selection, error) {
	if preferProgressive {
		if s := firstStream(item, domain.StreamProgressive); s != nil {
			return domain.Selection{Progressive: s}, nil
		}
	}

	video := firstStream(item, domain.StreamVideoOnly)
	audio := firstStream(item, domain.StreamAudioOnly)
	if video == nil || audio == nil {
		return domain.Selection{}, domain.NewError(domain.KindNoStreamAvailable, "video or audio stream not found", nil)
	}
	return domain.Selection{Video: video, Audio: audio}, nil
}

func firstStream(item *domain.MediaItem, kind domain.StreamKind) *domain.StreamDescriptor {
	for i := range item.Streams {
		s := &item.Streams[i]
		if s.Kind == kind && s.Container == selectContainer {
			return s
		}
	}
	return nil
}
