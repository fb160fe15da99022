package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/Xean001/tubedrop/internal/adapters/storage"
	"github.com/Xean001/tubedrop/internal/core/domain"
	"github.com/Xean001/tubedrop/internal/core/ports"
)

// Delivery results reported to the DeliveryRecorder.
const (
	DeliveryServed  = "served"
	DeliveryFailed  = "failed"
	DeliveryAborted = "aborted"
)

// Workspaces hands out and releases per-request directories.
type Workspaces interface {
	New() (*storage.Workspace, error)
	Release(ws *storage.Workspace, grace time.Duration)
}

type DeliveryRecorder interface {
	Delivered(result string)
}

type Config struct {
	// Workflow is used when a request does not pick a format.
	Workflow domain.Workflow
	// OutputDir receives one sub-directory per batch run.
	OutputDir string
	// CleanupGrace delays removal of a served workspace.
	CleanupGrace time.Duration
	// AudioMP3 tells the page whether audio downloads are converted to mp3
	// or kept in the platform's container.
	AudioMP3 bool
}

type Option func(*HTTPHandler)

func WithDeliveryRecorder(r DeliveryRecorder) Option {
	return func(h *HTTPHandler) { h.recorder = r }
}

// WithMetricsHandler exposes h at GET /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *HTTPHandler) { h.metrics = m }
}

type HTTPHandler struct {
	service    ports.DownloaderService
	workspaces Workspaces
	cfg        Config
	recorder   DeliveryRecorder
	metrics    http.Handler
}

func NewHTTPHandler(s ports.DownloaderService, ws Workspaces, cfg Config, opts ...Option) *HTTPHandler {
	if cfg.Workflow == "" {
		cfg.Workflow = domain.WorkflowAudio
	}
	h := &HTTPHandler{
		service:    s,
		workspaces: ws,
		cfg:        cfg,
		recorder:   nopRecorder{},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Router builds the gin engine serving every route.
func (h *HTTPHandler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	r.SetHTMLTemplate(pageTemplate)
	r.StaticFS("/static", staticFS())

	r.GET("/", h.HandleIndex)
	r.POST("/download", h.HandleRun)
	r.GET("/download/:video_id", h.HandleDeliver)
	r.GET("/healthz", h.HandleHealth)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
	return r
}

// pageData feeds templates/index.html.
type pageData struct {
	Link       string
	Format     string
	AudioLabel string
	Ran        bool
	RunID      string
	Succeeded  []domain.DownloadResult
	Failed     []domain.DownloadResult
	Skipped    []domain.DownloadResult
	Error      string
}

func (h *HTTPHandler) HandleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, pageName, h.page(""))
}

// HandleRun downloads everything the submitted link refers to and renders
// the result lists. The page is rendered for every outcome.
func (h *HTTPHandler) HandleRun(c *gin.Context) {
	link := strings.TrimSpace(c.PostForm("link"))
	data := h.page(link)

	workflow, ok := h.workflow(c.PostForm("format"))
	if !ok {
		data.Error = "Unknown format, use mp3 or mp4."
		c.HTML(http.StatusBadRequest, pageName, data)
		return
	}
	data.Format = formatName(workflow)
	if link == "" {
		data.Error = "Please enter a link."
		c.HTML(http.StatusBadRequest, pageName, data)
		return
	}

	runID := storage.NewID()
	runDir := filepath.Join(h.cfg.OutputDir, runID)
	if err := os.MkdirAll(runDir, storage.DefaultDirPermissions); err != nil {
		log.WithError(err).Errorf("Could not create output directory %s", runDir)
		data.Error = "The server could not prepare the download directory."
		c.HTML(http.StatusOK, pageName, data)
		return
	}

	outcome, err := h.service.Run(c.Request.Context(), link, workflow, runDir)
	data.Ran = true
	data.RunID = runID
	data.Succeeded = outcome.Succeeded
	data.Failed = outcome.Failed
	data.Skipped = outcome.Skipped
	if err != nil {
		data.Error = domain.Message(err)
	}
	c.HTML(http.StatusOK, pageName, data)
}

// HandleDeliver downloads one item into a fresh workspace and streams it
// back as an attachment. The workspace is released when the handler
// returns, whether the client stayed or not.
func (h *HTTPHandler) HandleDeliver(c *gin.Context) {
	id := c.Param("video_id")
	workflow, ok := h.workflow(c.Query("format"))
	if !ok {
		h.fail(c, domain.NewError(domain.KindMalformedLink, "unknown format "+c.Query("format"), nil))
		return
	}

	ws, err := h.workspaces.New()
	if err != nil {
		h.fail(c, domain.Fatal(err))
		return
	}
	defer h.workspaces.Release(ws, h.cfg.CleanupGrace)

	art, err := h.service.Deliver(c.Request.Context(), id, workflow, ws.Dir)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.recorder.Delivered(DeliveryAborted)
			c.Status(http.StatusBadRequest)
			return
		}
		h.fail(c, err)
		return
	}

	c.Header("Content-Type", art.ContentType)
	c.FileAttachment(art.Path, art.Filename)
	if c.Request.Context().Err() != nil {
		h.recorder.Delivered(DeliveryAborted)
		return
	}
	h.recorder.Delivered(DeliveryServed)
	log.WithFields(log.Fields{"item": art.ItemID, "file": art.Filename, "size": art.Size}).Info("File served")
}

func (h *HTTPHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) fail(c *gin.Context, err error) {
	h.recorder.Delivered(DeliveryFailed)
	c.JSON(http.StatusBadRequest, gin.H{
		"error": domain.Message(err),
		"kind":  domain.KindOf(err),
	})
}

// workflow resolves an optional format parameter.
func (h *HTTPHandler) workflow(format string) (domain.Workflow, bool) {
	if strings.TrimSpace(format) == "" {
		return h.cfg.Workflow, true
	}
	return domain.ParseWorkflow(format)
}

func (h *HTTPHandler) page(link string) pageData {
	label := "audio (original)"
	if h.cfg.AudioMP3 {
		label = "mp3"
	}
	return pageData{Link: link, Format: formatName(h.cfg.Workflow), AudioLabel: label}
}

func formatName(w domain.Workflow) string {
	if w == domain.WorkflowVideo {
		return "mp4"
	}
	return "mp3"
}

type nopRecorder struct{}

func (nopRecorder) Delivered(string) {}
