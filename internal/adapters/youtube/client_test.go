package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/kkdai/youtube/v2"

	"github.com/Xean001/tubedrop/internal/core/domain"
)

func TestContainerOf(t *testing.T) {
	tests := map[string]string{
		`video/mp4; codecs="avc1.4d401f"`: "mp4",
		`audio/webm; codecs="opus"`:       "webm",
		"audio/MP4":                       "mp4",
		"":                                "",
		"garbage":                         "",
	}
	for in, want := range tests {
		if got := containerOf(in); got != want {
			t.Errorf("containerOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStreamKind(t *testing.T) {
	tests := []struct {
		f    youtube.Format
		want domain.StreamKind
	}{
		{youtube.Format{MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioChannels: 2}, domain.StreamAudioOnly},
		{youtube.Format{MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, AudioChannels: 2}, domain.StreamProgressive},
		{youtube.Format{MimeType: `video/mp4; codecs="avc1.640028"`}, domain.StreamVideoOnly},
	}
	for _, tt := range tests {
		if got := streamKind(&tt.f); got != tt.want {
			t.Errorf("streamKind(%q) = %v, want %v", tt.f.MimeType, got, tt.want)
		}
	}
}

func TestToMediaItem(t *testing.T) {
	video := &youtube.Video{
		ID:     "abc",
		Title:  "A title",
		Author: "someone",
		Formats: youtube.FormatList{
			{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Height: 1080},
			{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 130000, AudioChannels: 2},
		},
	}
	item := toMediaItem(video, "https://x/watch?v=abc")
	if item.ID != "abc" || item.Title != "A title" || len(item.Streams) != 2 {
		t.Fatalf("item = %+v", item)
	}
	audio := item.Streams[1]
	if audio.Kind != domain.StreamAudioOnly || audio.Container != "mp4" || audio.Bitrate != 130000 {
		t.Errorf("audio stream = %+v", audio)
	}
	h, ok := audio.Handle.(handle)
	if !ok || h.format.ItagNo != 140 || h.video != video {
		t.Errorf("handle = %+v", audio.Handle)
	}
}

func TestNormalizePlaylistURL(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=abc&list=PL123": "https://www.youtube.com/playlist?list=PL123",
		"https://www.youtube.com/playlist?list=PL123":    "https://www.youtube.com/playlist?list=PL123",
		"https://www.youtube.com/watch?v=abc":            "https://www.youtube.com/watch?v=abc",
	}
	for in, want := range tests {
		if got := normalizePlaylistURL(in); got != want {
			t.Errorf("normalizePlaylistURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapError(t *testing.T) {
	const link = "https://x/watch?v=abc"
	tests := []struct {
		name string
		err  error
		want domain.Kind
	}{
		{"login", youtube.ErrLoginRequired, domain.KindAgeRestricted},
		{"private", fmt.Errorf("get: %w", youtube.ErrVideoPrivate), domain.KindPrivate},
		{"bad id", youtube.ErrInvalidCharactersInVideoID, domain.KindMalformedLink},
		{"short id", youtube.ErrVideoIDMinLength, domain.KindMalformedLink},
		{"bad playlist", youtube.ErrInvalidPlaylist, domain.KindMalformedLink},
		{"embed", youtube.ErrNotPlayableInEmbed, domain.KindUnavailable},
		{"age status", &youtube.ErrPlayabiltyStatus{Status: "LOGIN_REQUIRED", Reason: "Sign in to confirm your age"}, domain.KindAgeRestricted},
		{"private status", youtube.ErrPlayabiltyStatus{Status: "LOGIN_REQUIRED", Reason: "This video is private"}, domain.KindPrivate},
		{"unplayable", &youtube.ErrPlayabiltyStatus{Status: "ERROR", Reason: "Video unavailable"}, domain.KindUnavailable},
		{"status code", youtube.ErrUnexpectedStatusCode(403), domain.KindUnavailable},
		{"network", &url.Error{Op: "Get", URL: link, Err: errors.New("connection refused")}, domain.KindUnavailable},
		{"other", errors.New("cipher not found"), domain.KindUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(context.Background(), link, tt.err)
			if kind := domain.KindOf(got); kind != tt.want {
				t.Errorf("mapError() kind = %q, want %q (%v)", kind, tt.want, got)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("mapError() lost the cause: %v", got)
			}
		})
	}
}

func TestMapErrorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := mapError(ctx, "l", errors.New("read: connection reset")); !errors.Is(err, context.Canceled) {
		t.Errorf("mapError() = %v, want context.Canceled", err)
	}
}

func TestMapErrorUnavailableMessage(t *testing.T) {
	err := mapError(context.Background(), "https://x/watch?v=abc", &youtube.ErrPlayabiltyStatus{Status: "ERROR", Reason: "Video unavailable"})
	if got, want := domain.Message(err), "https://x/watch?v=abc : Video unavailable"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}
