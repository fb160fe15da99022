package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Xean001/tubedrop/internal/core/domain"
)

const sampleJSON = `{
  "id": "abc",
  "title": "Some title",
  "uploader": "someone",
  "duration": 212.5,
  "formats": [
    {"format_id": "sb0", "url": "https://i/sb", "ext": "mhtml", "vcodec": "none", "acodec": "none", "protocol": "mhtml"},
    {"format_id": "140", "url": "https://r/140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.2", "abr": 129.5, "filesize": 3400000, "protocol": "https", "http_headers": {"User-Agent": "ua"}},
    {"format_id": "251", "url": "https://r/251", "ext": "webm", "vcodec": "none", "acodec": "opus", "tbr": 140.1, "protocol": "https"},
    {"format_id": "137", "url": "https://r/137", "ext": "mp4", "vcodec": "avc1.640028", "acodec": "none", "height": 1080, "tbr": 4400, "filesize_approx": 90000000, "protocol": "https"},
    {"format_id": "18", "url": "https://r/18", "ext": "mp4", "vcodec": "avc1.42001E", "acodec": "mp4a.40.2", "height": 360, "protocol": "https"},
    {"format_id": "hls-1", "url": "https://r/m.m3u8", "ext": "mp4", "vcodec": "avc1", "acodec": "mp4a", "protocol": "m3u8_native"}
  ]
}`

func TestToMediaItem(t *testing.T) {
	var data ytDlpJSON
	if err := json.Unmarshal([]byte(sampleJSON), &data); err != nil {
		t.Fatal(err)
	}
	item := toMediaItem(&data, "https://x/watch?v=abc")

	if item.ID != "abc" || item.Author != "someone" || item.Duration != 212500*time.Millisecond {
		t.Errorf("item = %+v", item)
	}
	// storyboard and hls formats are dropped
	if len(item.Streams) != 4 {
		t.Fatalf("len(Streams) = %d, want 4", len(item.Streams))
	}

	audio := item.Streams[0]
	if audio.Itag != 140 || audio.Kind != domain.StreamAudioOnly || audio.Container != "mp4" ||
		audio.Bitrate != 129500 || audio.ContentLength != 3400000 || audio.Extension() != "m4a" {
		t.Errorf("audio = %+v", audio)
	}
	h, ok := audio.Handle.(handle)
	if !ok || h.url != "https://r/140" || h.headers["User-Agent"] != "ua" {
		t.Errorf("handle = %+v", audio.Handle)
	}

	if v := item.Streams[2]; v.Kind != domain.StreamVideoOnly || v.Height != 1080 || v.ContentLength != 90000000 {
		t.Errorf("video = %+v", v)
	}
	if p := item.Streams[3]; p.Kind != domain.StreamProgressive || p.Itag != 18 {
		t.Errorf("progressive = %+v", p)
	}
}

func TestStreamKind(t *testing.T) {
	tests := []struct {
		f    ytDlpFormat
		want domain.StreamKind
		ok   bool
	}{
		{ytDlpFormat{VCodec: "none", ACodec: "opus"}, domain.StreamAudioOnly, true},
		{ytDlpFormat{VCodec: "vp9", ACodec: "none"}, domain.StreamVideoOnly, true},
		{ytDlpFormat{VCodec: "avc1", ACodec: "mp4a"}, domain.StreamProgressive, true},
		{ytDlpFormat{VCodec: "none", ACodec: "none"}, 0, false},
	}
	for _, tt := range tests {
		got, ok := streamKind(tt.f)
		if got != tt.want || ok != tt.ok {
			t.Errorf("streamKind(%+v) = %v, %v; want %v, %v", tt.f, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMapStderr(t *testing.T) {
	const link = "https://x/watch?v=abc"
	exit := errors.New("exit status 1")
	tests := []struct {
		stderr string
		want   domain.Kind
	}{
		{"ERROR: [youtube] abc: Private video. Sign in if you've been granted access to this video", domain.KindPrivate},
		{"ERROR: [youtube] abc: Sign in to confirm your age. This video may be inappropriate for some users.", domain.KindAgeRestricted},
		{"ERROR: Unsupported URL: https://example.com/", domain.KindMalformedLink},
		{"WARNING: something\nERROR: [youtube] abc: Video unavailable", domain.KindUnavailable},
		{"ERROR: unable to download video data: HTTP Error 403: Forbidden", domain.KindUnavailable},
		{"Traceback (most recent call last):", domain.KindUnexpected},
	}
	for _, tt := range tests {
		err := mapStderr(link, tt.stderr, exit)
		if got := domain.KindOf(err); got != tt.want {
			t.Errorf("mapStderr(%q) kind = %q, want %q", tt.stderr, got, tt.want)
		}
		if !errors.Is(err, exit) {
			t.Errorf("mapStderr(%q) lost the exit error", tt.stderr)
		}
	}
}

func TestMapStderrUnavailableDetail(t *testing.T) {
	err := mapStderr("https://x/watch?v=abc", "ERROR: [youtube] abc: Video unavailable", errors.New("exit status 1"))
	if got, want := domain.Message(err), "https://x/watch?v=abc : [youtube] abc: Video unavailable"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestItemLink(t *testing.T) {
	a := NewYtDlpAdapter(Options{})
	if got := a.ItemLink("abc"); got != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("ItemLink() = %q", got)
	}
}

// fakeYtDlp writes a shell script that prints out in place of yt-dlp.
func fakeYtDlp(t *testing.T, out string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	script := "#!/bin/sh\ncat <<'JSON'\n" + out + "\nJSON\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFetchCollection(t *testing.T) {
	cmd := fakeYtDlp(t, `{"id": "PL1", "entries": [{"id": "a", "title": "A", "duration": 61}, {"id": ""}, {"id": "b", "title": "B"}]}`)
	a := NewYtDlpAdapter(Options{Command: cmd, Timeout: 10 * time.Second})

	items, err := a.FetchCollection(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != "a" || items[1].ID != "b" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Link != "https://www.youtube.com/watch?v=a" || items[0].Duration != 61*time.Second {
		t.Errorf("first item = %+v", items[0])
	}
}

func TestFetchCollectionEmpty(t *testing.T) {
	cmd := fakeYtDlp(t, `{"id": "PL1", "entries": []}`)
	a := NewYtDlpAdapter(Options{Command: cmd, Timeout: 10 * time.Second})

	items, err := a.FetchCollection(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	if err != nil || len(items) != 0 {
		t.Errorf("FetchCollection() = %v, %v; want no items and no error", items, err)
	}
}
