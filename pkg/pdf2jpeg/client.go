// Package pdf2jpeg converts PDF documents into per-page JPEG images named
// after the barcode found on each page.
package pdf2jpeg

import (
	"context"

	"github.com/spherical/pdf2jpeg/internal/barcode"
	"github.com/spherical/pdf2jpeg/internal/config"
	"github.com/spherical/pdf2jpeg/internal/domain"
	"github.com/spherical/pdf2jpeg/internal/enhance"
	"github.com/spherical/pdf2jpeg/internal/observability"
	"github.com/spherical/pdf2jpeg/internal/pdf"
	"github.com/spherical/pdf2jpeg/internal/save"
	"github.com/spherical/pdf2jpeg/internal/storage"
)

// Re-export types for the public API
type (
	Config       = config.Config
	Session      = domain.Session
	RunResult    = domain.RunResult
	SaveOutcome  = domain.SaveOutcome
	DecodeResult = domain.DecodeResult
	PageImage    = domain.PageImage
	RunState     = domain.RunState
	StreamEvent  = domain.StreamEvent
	EventType    = domain.EventType
	Job          = save.Job
	JobOption    = save.JobOption
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventPageProcessing = domain.EventPageProcessing
	EventPageComplete   = domain.EventPageComplete
	EventPageError      = domain.EventPageError
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// Run states
const (
	StateIdle      = domain.StateIdle
	StateRunning   = domain.StateRunning
	StateCompleted = domain.StateCompleted
	StateFailed    = domain.StateFailed
	StateCancelled = domain.StateCancelled
)

// WithObserver forwards every stream event of a job to fn.
func WithObserver(fn func(StreamEvent)) JobOption {
	return save.WithObserver(fn)
}

// Client is the main entry point for the converter
type Client struct {
	service   *save.Service
	converter *pdf.Converter
	sink      domain.Sink
	config    *config.Config
}

// NewClient creates a client from .env, environment variables and defaults.
func NewClient(ctx context.Context) (*Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, domain.ConfigError("failed to load configuration", err)
	}
	return NewClientWithConfig(ctx, cfg, nil)
}

// NewClientWithConfig creates a client with custom configuration.
// A nil logger discards log output.
func NewClientWithConfig(ctx context.Context, cfg *Config, logger *observability.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("invalid configuration", err)
	}
	if logger == nil {
		logger = observability.Nop()
	}

	sink, err := storage.New(ctx, cfg.Output)
	if err != nil {
		return nil, err
	}

	decoder := barcode.NewDecoder(
		barcode.WithTryHarder(cfg.Decode.TryHarder),
		barcode.WithLogger(logger),
	)

	opts := save.Options{
		DPI:          cfg.Render.DPI,
		Quality:      cfg.Output.Quality,
		Collision:    cfg.Output.Collision,
		Workers:      cfg.Pipeline.Workers,
		KeepOriginal: cfg.Output.KeepOriginal,
		Manifest:     cfg.Output.Manifest,
		EventQueue:   cfg.Pipeline.EventQueue,
	}

	converter := pdf.NewConverter(logger)
	service := save.NewService(converter, enhance.New(), decoder, sink, opts, logger)

	return &Client{
		service:   service,
		converter: converter,
		sink:      sink,
		config:    cfg,
	}, nil
}

// PageCount reports the number of pages in a PDF without rendering it.
func (c *Client) PageCount(pdfPath string) (int, error) {
	return c.converter.PageCount(pdfPath)
}

// Convert rasterizes a PDF into a session ready to be saved or scanned.
func (c *Client) Convert(ctx context.Context, pdfPath string) (*Session, error) {
	return c.service.Convert(ctx, pdfPath)
}

// Save starts saving the session on a background goroutine.
// Use the returned job to follow progress, cancel, or wait for the result.
// The session's images are released once the job ends.
func (c *Client) Save(ctx context.Context, session *Session, opts ...JobOption) *Job {
	return save.StartJob(ctx, c.service, session, opts...)
}

// Scan reports the barcode of each page without writing any files.
func (c *Client) Scan(ctx context.Context, session *Session) ([]*DecodeResult, error) {
	return c.service.Scan(ctx, session)
}

// ScanPage reports the barcode of a single page, nil when none is found.
func (c *Client) ScanPage(page PageImage) (*DecodeResult, error) {
	return c.service.ScanPage(page)
}

// Destination describes where images are written.
func (c *Client) Destination() string {
	return c.sink.Location()
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *Config {
	return c.config
}
