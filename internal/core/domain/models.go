package domain

import (
	"strings"
	"time"
)

// Workflow selects what a download produces.
type Workflow string

const (
	WorkflowAudio Workflow = "audio"
	WorkflowVideo Workflow = "video"
)

// ParseWorkflow accepts the workflow names and the file formats users type
// in forms ("mp3", "mp4").
func ParseWorkflow(s string) (Workflow, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "audio", "mp3", "m4a":
		return WorkflowAudio, true
	case "video", "mp4":
		return WorkflowVideo, true
	}
	return "", false
}

type LinkKind int

const (
	LinkSingle LinkKind = iota
	LinkCollection
)

func (k LinkKind) String() string {
	if k == LinkCollection {
		return "collection"
	}
	return "single"
}

// MediaLink is a classified user input. It is never modified after Classify.
type MediaLink struct {
	Raw  string
	Kind LinkKind
}

type StreamKind int

const (
	StreamAudioOnly StreamKind = iota
	StreamVideoOnly
	StreamProgressive
)

func (k StreamKind) String() string {
	switch k {
	case StreamVideoOnly:
		return "video-only"
	case StreamProgressive:
		return "progressive"
	}
	return "audio-only"
}

// StreamDescriptor references one retrievable track of a MediaItem.
type StreamDescriptor struct {
	Itag          int
	MimeType      string
	Container     string // "mp4", "webm", ...
	Kind          StreamKind
	Bitrate       int
	Height        int
	ContentLength int64

	// Handle belongs to the provider adapter that produced the descriptor.
	Handle any
}

// Extension returns the file extension used when the stream is written to
// disk on its own.
func (s StreamDescriptor) Extension() string {
	if s.Kind == StreamAudioOnly && s.Container == "mp4" {
		return "m4a"
	}
	if s.Container == "" {
		return "bin"
	}
	return s.Container
}

type MediaItem struct {
	ID       string
	Title    string
	Author   string
	Link     string
	Duration time.Duration
	Streams  []StreamDescriptor
}

// Selection is what the stream selector picked for one item. Either
// Progressive is set, or Video and/or Audio are.
type Selection struct {
	Progressive *StreamDescriptor
	Video       *StreamDescriptor
	Audio       *StreamDescriptor
}

// NeedsMux reports whether separate elementary streams have to be merged.
func (s Selection) NeedsMux() bool {
	return s.Progressive == nil && s.Video != nil && s.Audio != nil
}

type ResultStatus string

const (
	StatusSucceeded ResultStatus = "succeeded"
	StatusFailed    ResultStatus = "failed"
	StatusSkipped   ResultStatus = "skipped"
)

// DownloadResult is recorded once per processed item. Only succeeded
// results carry a Path.
type DownloadResult struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Status  ResultStatus `json:"status"`
	Path    string       `json:"path,omitempty"`
	Size    int64        `json:"size,omitempty"`
	ErrKind Kind         `json:"kind,omitempty"`
	Message string       `json:"message,omitempty"`
}

func (r DownloadResult) Success() bool {
	return r.Status == StatusSucceeded
}

func Succeeded(item MediaItem, path string, size int64) DownloadResult {
	return DownloadResult{ID: item.ID, Title: item.Title, Status: StatusSucceeded, Path: path, Size: size}
}

func Failed(item MediaItem, err error) DownloadResult {
	return DownloadResult{
		ID:      item.ID,
		Title:   item.Title,
		Status:  StatusFailed,
		ErrKind: KindOf(err),
		Message: Message(err),
	}
}

func Skipped(item MediaItem) DownloadResult {
	return DownloadResult{ID: item.ID, Title: item.Title, Status: StatusSkipped}
}

// DownloadOutcome partitions the results of one orchestration run. Each
// sequence keeps the order in which items were discovered.
type DownloadOutcome struct {
	Succeeded []DownloadResult `json:"succeeded"`
	Failed    []DownloadResult `json:"failed"`
	Skipped   []DownloadResult `json:"skipped"`
}

func (o *DownloadOutcome) Add(r DownloadResult) {
	switch r.Status {
	case StatusSucceeded:
		o.Succeeded = append(o.Succeeded, r)
	case StatusSkipped:
		o.Skipped = append(o.Skipped, r)
	default:
		r.Path = ""
		o.Failed = append(o.Failed, r)
	}
}

func (o DownloadOutcome) Total() int {
	return len(o.Succeeded) + len(o.Failed) + len(o.Skipped)
}

// Artifact is a finished file handed to the delivery layer.
type Artifact struct {
	ItemID      string
	Title       string
	Path        string
	Filename    string
	ContentType string
	Size        int64
}
