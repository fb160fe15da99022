package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Xean001/tubedrop/internal/core/domain"
	"github.com/Xean001/tubedrop/internal/core/ports"
)

const (
	DefaultCommand   = "yt-dlp"
	WatchURLTemplate = "https://www.youtube.com/watch?v=%s"
)

type Options struct {
	Command           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// ytDlpAdapter resolves metadata with the yt-dlp executable and fetches the
// stream URLs it reports over plain HTTP.
type ytDlpAdapter struct {
	command string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

func NewYtDlpAdapter(opts Options) ports.MediaProvider {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	return &ytDlpAdapter{
		command: opts.Command,
		timeout: opts.Timeout,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: opts.Timeout,
				TLSHandshakeTimeout:   opts.Timeout,
			},
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Internal struct to match yt-dlp JSON output
type ytDlpJSON struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Uploader   string        `json:"uploader"`
	Duration   float64       `json:"duration"`
	WebpageURL string        `json:"webpage_url"`
	URL        string        `json:"url"`
	Formats    []ytDlpFormat `json:"formats"`
	Entries    []ytDlpJSON   `json:"entries"` // For playlists
}

type ytDlpFormat struct {
	FormatID       string            `json:"format_id"`
	URL            string            `json:"url"`
	Ext            string            `json:"ext"`
	Height         int               `json:"height"`
	VCodec         string            `json:"vcodec"`
	ACodec         string            `json:"acodec"`
	TBR            float64           `json:"tbr"`
	ABR            float64           `json:"abr"`
	Filesize       int64             `json:"filesize"`
	FilesizeApprox int64             `json:"filesize_approx"`
	Protocol       string            `json:"protocol"`
	HTTPHeaders    map[string]string `json:"http_headers"`
}

// handle is stored in StreamDescriptor.Handle.
type handle struct {
	url     string
	headers map[string]string
}

func (a *ytDlpAdapter) ItemLink(id string) string {
	return fmt.Sprintf(WatchURLTemplate, id)
}

func (a *ytDlpAdapter) FetchItem(ctx context.Context, link string) (*domain.MediaItem, error) {
	data, err := a.dump(ctx, link, "-J", "--no-playlist")
	if err != nil {
		return nil, err
	}
	return toMediaItem(data, link), nil
}

func (a *ytDlpAdapter) FetchCollection(ctx context.Context, link string) ([]domain.MediaItem, error) {
	data, err := a.dump(ctx, link, "-J", "--flat-playlist")
	if err != nil {
		return nil, err
	}
	items := make([]domain.MediaItem, 0, len(data.Entries))
	for _, entry := range data.Entries {
		if entry.ID == "" {
			continue
		}
		items = append(items, domain.MediaItem{
			ID:       entry.ID,
			Title:    entry.Title,
			Author:   entry.Uploader,
			Duration: seconds(entry.Duration),
			Link:     a.ItemLink(entry.ID),
		})
	}
	return items, nil
}

func (a *ytDlpAdapter) OpenStream(ctx context.Context, item *domain.MediaItem, stream *domain.StreamDescriptor) (io.ReadCloser, int64, error) {
	h, ok := stream.Handle.(handle)
	if !ok {
		return nil, 0, fmt.Errorf("stream %d of %s was not produced by this provider", stream.Itag, item.ID)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, 0, domain.NewError(domain.KindUnexpected, "", err)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, domain.Unavailable(item.Link, "network error", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, domain.Unavailable(item.Link, fmt.Sprintf("stream request returned status %d", resp.StatusCode), nil)
	}
	return resp.Body, resp.ContentLength, nil
}

// dump runs yt-dlp with the given flags and decodes its JSON output.
func (a *ytDlpAdapter) dump(ctx context.Context, link string, flags ...string) (*ytDlpJSON, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	args := append(append([]string{}, flags...), "--no-warnings", link)
	log.Debugf("Running %s", shellescape.QuoteCommand(append([]string{a.command}, args...)))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, domain.Unavailable(link, "yt-dlp timed out", ctx.Err())
			}
			return nil, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, domain.Fatal(fmt.Errorf("yt-dlp not found: %w", err))
		}
		return nil, mapStderr(link, stderr.String(), err)
	}

	var data ytDlpJSON
	if err := json.Unmarshal(stdout.Bytes(), &data); err != nil {
		return nil, domain.NewError(domain.KindUnexpected, "decoding yt-dlp output", err)
	}
	return &data, nil
}

func toMediaItem(data *ytDlpJSON, link string) *domain.MediaItem {
	item := &domain.MediaItem{
		ID:       data.ID,
		Title:    data.Title,
		Author:   data.Uploader,
		Link:     link,
		Duration: seconds(data.Duration),
		Streams:  make([]domain.StreamDescriptor, 0, len(data.Formats)),
	}
	for i, f := range data.Formats {
		// Manifests (dash, m3u8) cannot be fetched with a single GET.
		if f.URL == "" || (f.Protocol != "" && !strings.HasPrefix(f.Protocol, "http")) {
			continue
		}
		kind, ok := streamKind(f)
		if !ok {
			continue
		}
		itag, err := strconv.Atoi(f.FormatID)
		if err != nil {
			itag = i
		}
		container := containerOf(f.Ext)
		item.Streams = append(item.Streams, domain.StreamDescriptor{
			Itag:          itag,
			MimeType:      mimeType(kind, container),
			Container:     container,
			Kind:          kind,
			Bitrate:       bitrate(f),
			Height:        f.Height,
			ContentLength: size(f),
			Handle:        handle{url: f.URL, headers: f.HTTPHeaders},
		})
	}
	return item
}

// streamKind classifies a format from its codec fields. Formats without any
// media track (storyboards) are rejected.
func streamKind(f ytDlpFormat) (domain.StreamKind, bool) {
	hasVideo := f.VCodec != "" && f.VCodec != "none"
	hasAudio := f.ACodec != "" && f.ACodec != "none"
	switch {
	case hasVideo && hasAudio:
		return domain.StreamProgressive, true
	case hasVideo:
		return domain.StreamVideoOnly, true
	case hasAudio:
		return domain.StreamAudioOnly, true
	}
	return 0, false
}

// containerOf maps yt-dlp extensions onto container names; m4a is mp4.
func containerOf(ext string) string {
	switch ext {
	case "m4a", "mp4":
		return "mp4"
	case "weba":
		return "webm"
	}
	return ext
}

func mimeType(kind domain.StreamKind, container string) string {
	if kind == domain.StreamAudioOnly {
		return "audio/" + container
	}
	return "video/" + container
}

// bitrate converts yt-dlp's kbit/s floats into bit/s.
func bitrate(f ytDlpFormat) int {
	kbps := f.TBR
	if kbps == 0 {
		kbps = f.ABR
	}
	return int(kbps * 1000)
}

func size(f ytDlpFormat) int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	return f.FilesizeApprox
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// mapStderr translates yt-dlp's error lines into the domain taxonomy.
func mapStderr(link, stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	if i := strings.LastIndex(msg, "ERROR: "); i >= 0 {
		msg = strings.TrimSpace(msg[i+len("ERROR: "):])
	}
	lower := strings.ToLower(msg)
	cause := fmt.Errorf("yt-dlp error: %s: %w", msg, err)

	switch {
	case strings.Contains(lower, "confirm your age"), strings.Contains(lower, "age-restricted"):
		return domain.NewError(domain.KindAgeRestricted, msg, cause)
	case strings.Contains(lower, "private video"):
		return domain.NewError(domain.KindPrivate, msg, cause)
	case strings.Contains(lower, "unsupported url"), strings.Contains(lower, "is not a valid url"),
		strings.Contains(lower, "incomplete youtube id"):
		return domain.NewError(domain.KindMalformedLink, link, cause)
	case strings.Contains(lower, "video unavailable"), strings.Contains(lower, "not available"),
		strings.Contains(lower, "http error"):
		return domain.Unavailable(link, msg, cause)
	}
	return domain.NewError(domain.KindUnexpected, msg, cause)
}
