// Package save drives the page pipeline: enhance, decode, name, write.
package save

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/pdf2jpeg/internal/domain"
	"github.com/spherical/pdf2jpeg/internal/naming"
	"github.com/spherical/pdf2jpeg/internal/observability"
)

// Options controls a Service.
type Options struct {
	DPI          int
	Quality      int
	Collision    naming.Policy
	Workers      int
	KeepOriginal bool
	Manifest     bool
	EventQueue   int
}

// DefaultOptions matches the behavior of the desktop tool: 150 dpi, sequential,
// enhanced images written, duplicate names overwritten.
func DefaultOptions() Options {
	return Options{
		DPI:        150,
		Quality:    75,
		Collision:  naming.Overwrite,
		Workers:    1,
		EventQueue: 100,
	}
}

// Service orchestrates rasterization and the per-page save pipeline
type Service struct {
	rasterizer domain.Rasterizer
	enhancer   domain.Enhancer
	decoder    domain.Decoder
	sink       domain.Sink
	opts       Options
	logger     *observability.Logger
}

// NewService creates a new save service
func NewService(rasterizer domain.Rasterizer, enhancer domain.Enhancer, decoder domain.Decoder, sink domain.Sink, opts Options, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.EventQueue < 1 {
		opts.EventQueue = 1
	}
	return &Service{
		rasterizer: rasterizer,
		enhancer:   enhancer,
		decoder:    decoder,
		sink:       sink,
		opts:       opts,
		logger:     logger.WithComponent("save"),
	}
}

// Options returns the options the service runs with.
func (s *Service) Options() Options {
	return s.opts
}

// Convert rasterizes the PDF into a new session.
func (s *Service) Convert(ctx context.Context, pdfPath string) (*domain.Session, error) {
	s.logger.Info().Str("path", pdfPath).Int("dpi", s.opts.DPI).Msg("Converting PDF to images")

	pages, err := s.rasterizer.Convert(ctx, pdfPath, s.opts.DPI)
	if err != nil {
		s.logger.Error().Err(err).Str("path", pdfPath).Msg("Conversion failed")
		return nil, err
	}

	s.logger.Info().Int("pages", len(pages)).Msg("Converted pages")

	return &domain.Session{
		ID:         uuid.NewString(),
		SourcePath: pdfPath,
		DPI:        s.opts.DPI,
		Pages:      pages,
		StartedAt:  time.Now(),
	}, nil
}

// Process converts the PDF and saves every page.
func (s *Service) Process(ctx context.Context, pdfPath string, eventCh chan<- domain.StreamEvent) (*domain.RunResult, error) {
	session, err := s.Convert(ctx, pdfPath)
	if err != nil {
		s.emitError(eventCh, err)
		return nil, err
	}
	return s.Save(ctx, session, eventCh)
}

// Save runs the page pipeline over the session in page order. Page failures are
// logged and counted without stopping the run; only cancellation ends it early,
// returning the outcomes gathered so far. Page bitmaps are released as they are
// written and the session is released when Save returns, so a session is saved once.
func (s *Service) Save(ctx context.Context, session *domain.Session, eventCh chan<- domain.StreamEvent) (*domain.RunResult, error) {
	if session == nil || len(session.Pages) == 0 {
		err := domain.ValidationError("no images available to save", nil)
		s.emitError(eventCh, err)
		return nil, err
	}
	defer session.Release()

	logger := s.logger.WithRun(session.ID)
	startTime := time.Now()
	doc := session.Document()
	total := doc.TotalPages

	logger.Info().Str("path", doc.FilePath).Int("pages", total).Msg("Saving pages")
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Total:     total,
		Payload:   fmt.Sprintf("Saving %d pages to %s", total, s.sink.Location()),
		Timestamp: time.Now(),
	})

	namer := naming.New(s.opts.Collision)
	result := &domain.RunResult{
		RunID:    session.ID,
		Outcomes: make([]domain.SaveOutcome, 0, total),
	}

	next, stop := s.prepareAhead(ctx, session.Pages)
	defer stop()

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(startTime)
			s.emitError(eventCh, err)
			return result, err
		}

		pageNumber := i + 1
		s.emitEvent(eventCh, domain.StreamEvent{
			Type:       domain.EventPageProcessing,
			PageNumber: pageNumber,
			Total:      total,
			Payload:    fmt.Sprintf("Saving image %d of %d", pageNumber, total),
			Timestamp:  time.Now(),
		})

		outcome := s.write(ctx, logger, namer, next(i))
		session.Pages[i].Image = nil
		result.Outcomes = append(result.Outcomes, outcome)

		evtType := domain.EventPageComplete
		if outcome.OK() {
			result.Succeeded++
		} else {
			result.Failed++
			evtType = domain.EventPageError
		}

		s.emitEvent(eventCh, domain.StreamEvent{
			Type:       evtType,
			PageNumber: pageNumber,
			Total:      total,
			Payload:    &result.Outcomes[len(result.Outcomes)-1],
			Timestamp:  time.Now(),
		})
	}

	result.Duration = time.Since(startTime)

	if s.opts.Manifest {
		if err := s.writeManifest(ctx, BuildManifest(session, result)); err != nil {
			logger.Error().Err(err).Msg("Failed to write manifest")
		}
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		Total:     total,
		Payload:   fmt.Sprintf("Saved %d/%d pages in %v", result.Succeeded, total, result.Duration.Round(time.Millisecond)),
		Timestamp: time.Now(),
	})

	logger.Info().Int("succeeded", result.Succeeded).Int("failed", result.Failed).
		Dur("duration", result.Duration).Msg("Save complete")

	return result, nil
}

// Scan enhances and decodes every page without writing anything.
// The result has one entry per page, nil where no barcode was found.
func (s *Service) Scan(ctx context.Context, session *domain.Session) ([]*domain.DecodeResult, error) {
	if session == nil || len(session.Pages) == 0 {
		return nil, domain.ValidationError("no images available to scan", nil)
	}

	results := make([]*domain.DecodeResult, len(session.Pages))
	for i, page := range session.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.ScanPage(page)
		if err != nil {
			s.logger.Warn().Err(err).Int("page", page.PageNumber()).Msg("Decode failed")
			continue
		}
		results[i] = result
	}
	return results, nil
}

// ScanPage enhances and decodes a single page.
func (s *Service) ScanPage(page domain.PageImage) (*domain.DecodeResult, error) {
	if page.Image == nil {
		return nil, errPageReleased(page)
	}
	return s.decoder.Decode(s.enhancer.Enhance(page.Image))
}

func errPageReleased(page domain.PageImage) error {
	return domain.DecodeError(fmt.Sprintf("page %d image is no longer available", page.PageNumber()), nil)
}

// preparedPage is a page after enhancement and decoding, ready to be written
type preparedPage struct {
	index     int
	image     image.Image
	barcode   *domain.DecodeResult
	err       error
	recovered interface{} // panic recovered in a worker, re-raised on the run goroutine
	skipped   bool        // never started because the run was stopping
}

func (s *Service) prepare(page domain.PageImage) preparedPage {
	if page.Image == nil {
		return preparedPage{index: page.Index, err: errPageReleased(page)}
	}

	enhanced := s.enhancer.Enhance(page.Image)

	barcode, err := s.decoder.Decode(enhanced)
	if err != nil {
		return preparedPage{index: page.Index, err: err}
	}

	var out image.Image = page.Image
	if !s.opts.KeepOriginal {
		out = toGray(enhanced)
	}
	return preparedPage{index: page.Index, image: out, barcode: barcode}
}

// toGray stores a grayscale page with one byte per pixel so it is written as
// a single channel JPEG.
func toGray(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// prepareAhead returns a function yielding the prepared page for an index, and a
// function that stops background work and waits for it. With one worker pages are
// prepared inline; otherwise up to Workers pages are enhanced and decoded
// concurrently while results are still consumed in page order. At most Workers
// pages are in flight or waiting to be taken, so memory does not grow with the
// page count.
func (s *Service) prepareAhead(ctx context.Context, pages []domain.PageImage) (func(int) preparedPage, func()) {
	if s.opts.Workers <= 1 {
		return func(i int) preparedPage { return s.prepare(pages[i]) }, func() {}
	}

	slots := make([]chan preparedPage, len(pages))
	for i := range slots {
		slots[i] = make(chan preparedPage, 1)
	}

	pctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(pctx)
	g.SetLimit(s.opts.Workers)
	ahead := make(chan struct{}, s.opts.Workers)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := range pages {
			page, slot := pages[i], slots[i]
			select {
			case ahead <- struct{}{}:
			case <-gctx.Done():
				slot <- preparedPage{index: page.Index, err: gctx.Err(), skipped: true}
				continue
			}
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						slot <- preparedPage{index: page.Index, recovered: r}
					}
				}()
				slot <- s.prepare(page)
				return nil
			})
		}
		_ = g.Wait()
	}()

	next := func(i int) preparedPage {
		p := <-slots[i]
		if !p.skipped {
			<-ahead
		}
		if p.recovered != nil {
			panic(p.recovered)
		}
		return p
	}
	stop := func() {
		cancel()
		<-done
	}
	return next, stop
}

// write names and persists one page. Errors are recorded on the outcome.
func (s *Service) write(ctx context.Context, logger *observability.Logger, namer *naming.Namer, p preparedPage) domain.SaveOutcome {
	outcome := domain.SaveOutcome{Index: p.index, Barcode: p.barcode}
	if p.err != nil {
		outcome.Err = p.err
		logger.Error().Err(p.err).Int("page", p.index+1).Msg("Error saving image")
		return outcome
	}

	name, collided := namer.Name(p.barcode, p.index)
	outcome.FileName = name
	if collided && s.opts.Collision == naming.Overwrite {
		logger.Warn().Str("file", name).Int("page", p.index+1).Msg("Duplicate name, overwriting earlier page")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, p.image, imaging.JPEG, imaging.JPEGQuality(s.opts.Quality)); err != nil {
		outcome.Err = domain.SaveError(fmt.Sprintf("Failed to encode page %d", p.index+1), err)
		logger.Error().Err(outcome.Err).Int("page", p.index+1).Msg("Error saving image")
		return outcome
	}

	location, err := s.sink.Put(ctx, name, &buf, int64(buf.Len()), "image/jpeg")
	if err != nil {
		outcome.Err = err
		logger.Error().Err(err).Int("page", p.index+1).Msg("Error saving image")
		return outcome
	}

	outcome.Location = location
	logger.Info().Str("path", location).Msg("Saved image")
	return outcome
}

// emitEvent emits an event without blocking; progress display tolerates drops
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			s.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}
}

// emitError emits an error event
func (s *Service) emitError(eventCh chan<- domain.StreamEvent, err error) {
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventError,
		Payload:   err.Error(),
		Timestamp: time.Now(),
	})
}
