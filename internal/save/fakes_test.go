package save

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spherical/pdf2jpeg/internal/domain"
	"github.com/spherical/pdf2jpeg/internal/enhance"
)

type fakeRasterizer struct {
	pages []domain.PageImage
	err   error
}

func (f *fakeRasterizer) Convert(ctx context.Context, pdfPath string, dpi int) ([]domain.PageImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

// failingSink rejects the listed names and delegates the rest.
type failingSink struct {
	domain.Sink
	fail map[string]bool
}

func (s *failingSink) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if s.fail[name] {
		return "", domain.IOError("disk full", errors.New("no space left on device"))
	}
	return s.Sink.Put(ctx, name, r, size, contentType)
}

// erroringDecoder fails on the failOn-th call.
type erroringDecoder struct {
	mu     sync.Mutex
	calls  int
	failOn int
	next   domain.Decoder
}

func (d *erroringDecoder) Decode(img image.Image) (*domain.DecodeResult, error) {
	d.mu.Lock()
	d.calls++
	call := d.calls
	d.mu.Unlock()
	if call == d.failOn {
		return nil, domain.DecodeError("corrupt bitmap", nil)
	}
	return d.next.Decode(img)
}

type panickingEnhancer struct {
	value interface{}
}

func (e panickingEnhancer) Enhance(img image.Image) *image.NRGBA {
	panic(e.value)
}

// blockingEnhancer waits for release before enhancing.
type blockingEnhancer struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (e *blockingEnhancer) Enhance(img image.Image) *image.NRGBA {
	e.once.Do(func() { close(e.started) })
	<-e.release
	return enhance.New().Enhance(img)
}

// countingEnhancer counts started enhancements and can panic on the first one.
type countingEnhancer struct {
	started    atomic.Int64
	panicFirst bool
	delay      time.Duration
}

func (e *countingEnhancer) Enhance(img image.Image) *image.NRGBA {
	n := e.started.Add(1)
	if e.panicFirst && n == 1 {
		panic("enhance failed")
	}
	time.Sleep(e.delay)
	return enhance.New().Enhance(img)
}

// slowSink records how many pages were enhanced but not yet written at each write.
type slowSink struct {
	domain.Sink
	enhancer *countingEnhancer
	delay    time.Duration

	mu      sync.Mutex
	written int64
	maxHeld int64
}

func (s *slowSink) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	time.Sleep(s.delay)

	s.mu.Lock()
	if held := s.enhancer.started.Load() - s.written; held > s.maxHeld {
		s.maxHeld = held
	}
	s.written++
	s.mu.Unlock()

	return s.Sink.Put(ctx, name, r, size, contentType)
}
