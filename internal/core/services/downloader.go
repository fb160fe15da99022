package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Xean001/tubedrop/internal/core/domain"
	"github.com/Xean001/tubedrop/internal/core/ports"
)

const (
	DefaultWorkers = 2
	MaxWorkers     = 10
)

type Options struct {
	// Workers bounds how many collection items are processed at once.
	Workers int
	// PreferProgressive lets the video workflow use a combined stream and
	// skip muxing when the provider offers one.
	PreferProgressive bool
	// AudioMP3 converts the audio workflow's output to mp3.
	AudioMP3 bool
}

type Option func(*downloaderService)

func WithObserver(o ports.Observer) Option {
	return func(s *downloaderService) { s.observer = o }
}

func WithProgress(p ports.ProgressReporter) Option {
	return func(s *downloaderService) { s.progress = p }
}

type downloaderService struct {
	provider  ports.MediaProvider
	processor ports.MediaProcessor
	observer  ports.Observer
	progress  ports.ProgressReporter
	opts      Options
}

func NewDownloaderService(provider ports.MediaProvider, processor ports.MediaProcessor, opts Options, options ...Option) ports.DownloaderService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Workers > MaxWorkers {
		opts.Workers = MaxWorkers
	}
	s := &downloaderService{
		provider:  provider,
		processor: processor,
		observer:  nopObserver{},
		progress:  nopProgress{},
		opts:      opts,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Run classifies the link, enumerates its items and downloads each of them
// into workDir. Per-item failures end up in the Failed sequence. A fatal
// fault stops the run; items that had not finished by then are returned as
// Skipped next to the error.
func (s *downloaderService) Run(ctx context.Context, link string, workflow domain.Workflow, workDir string) (domain.DownloadOutcome, error) {
	var outcome domain.DownloadOutcome
	started := time.Now()

	ml := Classify(link)
	logger := log.WithFields(log.Fields{"link": link, "kind": ml.Kind, "workflow": workflow})

	if err := checkWorkDir(workDir); err != nil {
		logger.WithError(err).Error("Working directory is not usable")
		return outcome, err
	}

	items, err := s.enumerate(ctx, ml)
	if err != nil {
		logger.WithError(err).Warn(domain.Message(err))
		return outcome, err
	}
	logger.Infof("Processing %d item(s)", len(items))

	results, runErr := s.process(ctx, items, workflow, workDir)
	for _, r := range results {
		outcome.Add(r)
	}

	s.observer.RunFinished(workflow, ml.Kind, time.Since(started))
	fields := log.Fields{
		"succeeded": len(outcome.Succeeded),
		"failed":    len(outcome.Failed),
		"skipped":   len(outcome.Skipped),
		"took":      time.Since(started).Round(time.Millisecond),
	}
	if runErr != nil {
		logger.WithFields(fields).WithError(runErr).Error("Run aborted")
	} else {
		logger.WithFields(fields).Info("Run finished")
	}
	return outcome, runErr
}

// Deliver downloads one item for on-demand delivery.
func (s *downloaderService) Deliver(ctx context.Context, itemID string, workflow domain.Workflow, workDir string) (*domain.Artifact, error) {
	if err := checkWorkDir(workDir); err != nil {
		return nil, err
	}
	ref := domain.MediaItem{ID: itemID, Link: s.provider.ItemLink(itemID)}
	art, item, err := s.download(ctx, ref, workflow, workDir, newNameSet())
	if err != nil {
		s.observer.ItemFinished(workflow, domain.StatusFailed, domain.KindOf(err))
		log.WithFields(log.Fields{"item": item.ID, "title": item.Title, "kind": domain.KindOf(err)}).
			WithError(err).Warn(domain.Message(err))
		return nil, err
	}
	s.observer.ItemFinished(workflow, domain.StatusSucceeded, "")
	return art, nil
}

func (s *downloaderService) enumerate(ctx context.Context, ml domain.MediaLink) ([]domain.MediaItem, error) {
	if ml.Kind == domain.LinkSingle {
		return []domain.MediaItem{{ID: itemIDFromLink(ml.Raw), Link: ml.Raw}}, nil
	}
	items, err := s.provider.FetchCollection(ctx, ml.Raw)
	if err != nil {
		return nil, fmt.Errorf("resolving collection: %w", err)
	}
	return items, nil
}

// process runs one task per item on a bounded pool. Results are stored by
// input index so the caller sees them in discovery order.
func (s *downloaderService) process(parent context.Context, items []domain.MediaItem, workflow domain.Workflow, workDir string) ([]domain.DownloadResult, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	results := make([]domain.DownloadResult, len(items))
	finished := make([]bool, len(items))
	names := newNameSet()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fatalErr error
	)
	sem := make(chan struct{}, s.opts.Workers)

	for i := range items {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := s.processItem(ctx, items[i], workflow, workDir, names)
			if err != nil {
				mu.Lock()
				if fatalErr == nil {
					fatalErr = err
				}
				mu.Unlock()
				cancel()
				return
			}
			results[i] = res
			finished[i] = true
		}(i)
	}
	wg.Wait()

	if fatalErr == nil && parent.Err() != nil {
		fatalErr = domain.Fatal(parent.Err())
	}
	for i := range items {
		if !finished[i] {
			results[i] = domain.Skipped(items[i])
			s.observer.ItemFinished(workflow, domain.StatusSkipped, "")
		}
	}
	return results, fatalErr
}

// processItem returns the item's result, or a non-nil error when the fault
// is fatal for the whole run.
func (s *downloaderService) processItem(ctx context.Context, ref domain.MediaItem, workflow domain.Workflow, workDir string, names *nameSet) (domain.DownloadResult, error) {
	art, item, err := s.download(ctx, ref, workflow, workDir, names)
	logger := log.WithFields(log.Fields{"item": item.ID, "title": item.Title})
	if err != nil {
		if ctx.Err() != nil {
			return domain.DownloadResult{}, domain.Fatal(ctx.Err())
		}
		if domain.IsFatal(err) {
			return domain.DownloadResult{}, err
		}
		kind := domain.KindOf(err)
		logger.WithField("kind", kind).WithError(err).Warn(domain.Message(err))
		s.observer.ItemFinished(workflow, domain.StatusFailed, kind)
		return domain.Failed(item, err), nil
	}

	logger.WithField("path", art.Path).Info("Downloaded successfully")
	s.observer.ItemFinished(workflow, domain.StatusSucceeded, "")
	return domain.Succeeded(item, art.Path, art.Size), nil
}

// download runs fetch, select, retrieve and the optional mux or transcode
// step for one item. The returned item carries whatever metadata was known
// when the pipeline stopped.
func (s *downloaderService) download(ctx context.Context, ref domain.MediaItem, workflow domain.Workflow, workDir string, names *nameSet) (*domain.Artifact, domain.MediaItem, error) {
	link := ref.Link
	if link == "" {
		link = s.provider.ItemLink(ref.ID)
	}

	fetched, err := s.provider.FetchItem(ctx, link)
	if err != nil {
		return nil, ref, err
	}
	item := *fetched
	if item.ID == "" {
		item.ID = ref.ID
	}
	if item.Title == "" {
		item.Title = ref.Title
	}

	base := filepath.Join(workDir, names.claim(diskName(item)))
	var art *domain.Artifact
	if workflow == domain.WorkflowVideo {
		art, err = s.downloadVideo(ctx, &item, base)
	} else {
		art, err = s.downloadAudio(ctx, &item, base)
	}
	return art, item, err
}

func (s *downloaderService) downloadAudio(ctx context.Context, item *domain.MediaItem, base string) (*domain.Artifact, error) {
	stream, err := SelectAudio(item)
	if err != nil {
		return nil, err
	}

	raw := base + "." + stream.Extension()
	if err := s.retrieve(ctx, item, stream, raw); err != nil {
		return nil, err
	}
	if !s.opts.AudioMP3 {
		return newArtifact(item, raw)
	}

	out := base + ".mp3"
	if err := s.processor.ConvertToMP3(ctx, raw, out); err != nil {
		return nil, err
	}
	return newArtifact(item, out)
}

func (s *downloaderService) downloadVideo(ctx context.Context, item *domain.MediaItem, base string) (*domain.Artifact, error) {
	sel, err := SelectVideo(item, s.opts.PreferProgressive)
	if err != nil {
		return nil, err
	}

	if sel.Progressive != nil {
		out := base + "." + sel.Progressive.Extension()
		if err := s.retrieve(ctx, item, sel.Progressive, out); err != nil {
			return nil, err
		}
		return newArtifact(item, out)
	}

	videoFile := base + "_video." + sel.Video.Extension()
	audioFile := base + "_audio." + sel.Audio.Extension()
	if err := s.retrieve(ctx, item, sel.Video, videoFile); err != nil {
		return nil, err
	}
	if err := s.retrieve(ctx, item, sel.Audio, audioFile); err != nil {
		removeFiles(videoFile)
		return nil, err
	}

	out := base + ".mp4"
	if err := s.processor.MuxVideoAudio(ctx, videoFile, audioFile, out); err != nil {
		return nil, err
	}
	return newArtifact(item, out)
}

// retrieve copies one stream into dest. A partial file never survives a
// failed retrieval.
func (s *downloaderService) retrieve(ctx context.Context, item *domain.MediaItem, stream *domain.StreamDescriptor, dest string) error {
	body, size, err := s.provider.OpenStream(ctx, item, stream)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return domain.Fatal(fmt.Errorf("creating %s: %w", dest, err))
	}

	bar := s.progress.Track(fmt.Sprintf("%s (%s)", item.Title, stream.Kind), size)
	n, err := io.Copy(io.MultiWriter(f, bar), body)
	bar.Close()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		removeFiles(dest)
		if ctx.Err() != nil || domain.IsFatal(err) {
			return err
		}
		return domain.Unavailable(item.Link, "retrieval interrupted", err)
	}

	s.observer.BytesRetrieved(n)
	log.WithFields(log.Fields{"item": item.ID, "stream": stream.Kind, "itag": stream.Itag, "bytes": n}).
		Debug("Stream retrieved")
	return nil
}

func newArtifact(item *domain.MediaItem, path string) (*domain.Artifact, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", path, err)
	}
	ext := filepath.Ext(path)
	name := SanitizeFilename(item.Title)
	if name == "" {
		name = SanitizeFilename(item.ID)
	}
	return &domain.Artifact{
		ItemID:      item.ID,
		Title:       item.Title,
		Path:        path,
		Filename:    name + ext,
		ContentType: ContentTypeFor(ext),
		Size:        st.Size(),
	}, nil
}

// diskName keeps files of equally titled items apart inside one workspace.
func diskName(item domain.MediaItem) string {
	name := SanitizeFilename(item.Title)
	id := SanitizeFilename(item.ID)
	if name == "" {
		return id
	}
	return name + "_" + id
}

// nameSet hands out file base names that are unique within one run, so a
// collection listing the same item twice gets two separate files.
type nameSet struct {
	mu   sync.Mutex
	used map[string]bool
}

func newNameSet() *nameSet {
	return &nameSet{used: make(map[string]bool)}
}

func (n *nameSet) claim(base string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	name := base
	for i := 2; n.used[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	n.used[name] = true
	return name
}

func checkWorkDir(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		return domain.Fatal(fmt.Errorf("working directory: %w", err))
	}
	if !st.IsDir() {
		return domain.Fatal(fmt.Errorf("working directory %s is not a directory", dir))
	}
	return nil
}

func removeFiles(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warnf("Could not remove %s", p)
		}
	}
}

type nopObserver struct{}

func (nopObserver) ItemFinished(domain.Workflow, domain.ResultStatus, domain.Kind) {}
func (nopObserver) RunFinished(domain.Workflow, domain.LinkKind, time.Duration)   {}
func (nopObserver) BytesRetrieved(int64)                                         {}

type nopProgress struct{}

func (nopProgress) Track(string, int64) io.WriteCloser { return nopWriteCloser{io.Discard} }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
