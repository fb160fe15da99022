package ports

import (
	"context"
	"io"
	"time"

	"github.com/Xean001/tubedrop/internal/core/domain"
)

type DownloaderService interface {
	// Run downloads everything a link refers to into workDir.
	Run(ctx context.Context, link string, workflow domain.Workflow, workDir string) (domain.DownloadOutcome, error)
	// Deliver prepares a single item for on-demand delivery.
	Deliver(ctx context.Context, itemID string, workflow domain.Workflow, workDir string) (*domain.Artifact, error)
}

// MediaProvider is the video platform. Implementations return *domain.Error
// values for the failures they can classify.
type MediaProvider interface {
	FetchItem(ctx context.Context, link string) (*domain.MediaItem, error)
	// FetchCollection lists the members of a collection in order. The
	// returned items carry no streams.
	FetchCollection(ctx context.Context, link string) ([]domain.MediaItem, error)
	OpenStream(ctx context.Context, item *domain.MediaItem, stream *domain.StreamDescriptor) (io.ReadCloser, int64, error)
	// ItemLink builds the canonical link for an item identifier.
	ItemLink(id string) string
}

type MediaProcessor interface {
	// MuxVideoAudio merges both inputs into output and removes the inputs
	// whatever the result.
	MuxVideoAudio(ctx context.Context, videoFile, audioFile, output string) error
	ConvertToMP3(ctx context.Context, audioFile, output string) error
}

// Observer receives pipeline events, typically for metrics.
type Observer interface {
	ItemFinished(workflow domain.Workflow, status domain.ResultStatus, kind domain.Kind)
	RunFinished(workflow domain.Workflow, kind domain.LinkKind, took time.Duration)
	BytesRetrieved(n int64)
}

// ProgressReporter returns a writer that tracks retrieval of one stream.
type ProgressReporter interface {
	Track(label string, size int64) io.WriteCloser
}
