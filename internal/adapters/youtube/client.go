package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Xean001/tubedrop/internal/core/domain"
	"github.com/Xean001/tubedrop/internal/core/ports"
)

const (
	WatchURLTemplate    = "https://www.youtube.com/watch?v=%s"
	PlaylistURLTemplate = "https://www.youtube.com/playlist?list=%s"
)

type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

type youtubeRepo struct {
	client  *youtube.Client
	limiter *rate.Limiter
}

// handle is what the core carries around in StreamDescriptor.Handle.
type handle struct {
	video  *youtube.Video
	format *youtube.Format
}

func NewYouTubeRepository(opts Options) ports.MediaProvider {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	return &youtubeRepo{
		// Stream downloads can take far longer than metadata requests, so
		// the timeout only guards the dial and response headers.
		client: &youtube.Client{
			HTTPClient: &http.Client{
				Transport: &http.Transport{
					Proxy:                 http.ProxyFromEnvironment,
					ResponseHeaderTimeout: opts.Timeout,
					TLSHandshakeTimeout:   opts.Timeout,
				},
			},
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (r *youtubeRepo) ItemLink(id string) string {
	return fmt.Sprintf(WatchURLTemplate, id)
}

func (r *youtubeRepo) FetchItem(ctx context.Context, link string) (*domain.MediaItem, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	video, err := r.client.GetVideoContext(ctx, link)
	if err != nil {
		return nil, mapError(ctx, link, err)
	}
	return toMediaItem(video, link), nil
}

func (r *youtubeRepo) FetchCollection(ctx context.Context, link string) ([]domain.MediaItem, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	playlist, err := r.client.GetPlaylistContext(ctx, normalizePlaylistURL(link))
	if err != nil {
		return nil, mapError(ctx, link, err)
	}

	items := make([]domain.MediaItem, 0, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		items = append(items, domain.MediaItem{
			ID:       entry.ID,
			Title:    entry.Title,
			Author:   entry.Author,
			Duration: entry.Duration,
			Link:     r.ItemLink(entry.ID),
		})
	}
	log.WithFields(log.Fields{"playlist": playlist.ID, "title": playlist.Title, "entries": len(items)}).
		Debug("Playlist resolved")
	return items, nil
}

func (r *youtubeRepo) OpenStream(ctx context.Context, item *domain.MediaItem, stream *domain.StreamDescriptor) (io.ReadCloser, int64, error) {
	h, ok := stream.Handle.(handle)
	if !ok {
		return nil, 0, fmt.Errorf("stream %d of %s was not produced by this provider", stream.Itag, item.ID)
	}
	body, size, err := r.client.GetStreamContext(ctx, h.video, h.format)
	if err != nil {
		return nil, 0, mapError(ctx, item.Link, err)
	}
	return body, size, nil
}

// normalizePlaylistURL turns watch?v=..&list=.. links into a plain playlist
// link, which the client resolves more reliably.
func normalizePlaylistURL(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if listID := u.Query().Get("list"); listID != "" {
		return fmt.Sprintf(PlaylistURLTemplate, listID)
	}
	return link
}

func toMediaItem(video *youtube.Video, link string) *domain.MediaItem {
	item := &domain.MediaItem{
		ID:       video.ID,
		Title:    video.Title,
		Author:   video.Author,
		Link:     link,
		Duration: video.Duration,
		Streams:  make([]domain.StreamDescriptor, 0, len(video.Formats)),
	}
	for i := range video.Formats {
		f := &video.Formats[i]
		item.Streams = append(item.Streams, domain.StreamDescriptor{
			Itag:          f.ItagNo,
			MimeType:      f.MimeType,
			Container:     containerOf(f.MimeType),
			Kind:          streamKind(f),
			Bitrate:       f.Bitrate,
			Height:        f.Height,
			ContentLength: f.ContentLength,
			Handle:        handle{video: video, format: f},
		})
	}
	return item
}

// containerOf extracts "mp4" from `video/mp4; codecs="avc1.4d401f"`.
func containerOf(mimeType string) string {
	t, _, _ := strings.Cut(mimeType, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(t), "/")
	if !ok {
		return ""
	}
	return strings.ToLower(sub)
}

func streamKind(f *youtube.Format) domain.StreamKind {
	switch {
	case strings.HasPrefix(f.MimeType, "audio/"):
		return domain.StreamAudioOnly
	case f.AudioChannels > 0:
		return domain.StreamProgressive
	default:
		return domain.StreamVideoOnly
	}
}

// mapError translates client errors into the domain taxonomy.
func mapError(ctx context.Context, link string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	switch {
	case errors.Is(err, youtube.ErrLoginRequired):
		return domain.NewError(domain.KindAgeRestricted, "", err)
	case errors.Is(err, youtube.ErrVideoPrivate):
		return domain.NewError(domain.KindPrivate, "", err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength),
		errors.Is(err, youtube.ErrInvalidPlaylist):
		return domain.NewError(domain.KindMalformedLink, link, err)
	case errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return domain.Unavailable(link, err.Error(), err)
	}

	if status, ok := playabilityStatus(err); ok {
		reason := strings.ToLower(status.Reason)
		switch {
		case strings.Contains(reason, "age"):
			return domain.NewError(domain.KindAgeRestricted, status.Reason, err)
		case strings.Contains(reason, "private"):
			return domain.NewError(domain.KindPrivate, status.Reason, err)
		}
		detail := status.Reason
		if detail == "" {
			detail = status.Status
		}
		return domain.Unavailable(link, detail, err)
	}

	var code youtube.ErrUnexpectedStatusCode
	if errors.As(err, &code) {
		return domain.Unavailable(link, code.Error(), err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return domain.Unavailable(link, "network error", err)
	}
	return domain.NewError(domain.KindUnexpected, "", err)
}

func playabilityStatus(err error) (youtube.ErrPlayabiltyStatus, bool) {
	var ptr *youtube.ErrPlayabiltyStatus
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	var val youtube.ErrPlayabiltyStatus
	if errors.As(err, &val) {
		return val, true
	}
	return youtube.ErrPlayabiltyStatus{}, false
}
