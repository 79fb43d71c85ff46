package domain

import (
	"image"
	"time"
)

// Document represents the source PDF file being processed
type Document struct {
	FilePath   string
	TotalPages int
}

// PageImage is one rasterized page held in memory
type PageImage struct {
	Index int // 0-based position in the document
	Image image.Image
}

// PageNumber returns the 1-based page number used for display and naming.
func (p PageImage) PageNumber() int {
	return p.Index + 1
}

// DecodeResult is a barcode read from a page
type DecodeResult struct {
	Text   string `json:"text" yaml:"text"`
	Format string `json:"format" yaml:"format"`
}

// Session carries one convert/save request through the pipeline
type Session struct {
	ID         string
	SourcePath string
	DPI        int
	Pages      []PageImage
	StartedAt  time.Time
}

// Document returns the document described by the session.
func (s *Session) Document() Document {
	return Document{FilePath: s.SourcePath, TotalPages: len(s.Pages)}
}

// Release drops the page bitmaps so they can be collected.
func (s *Session) Release() {
	s.Pages = nil
}

// SaveOutcome is the result of saving a single page
type SaveOutcome struct {
	Index    int
	FileName string
	Location string
	Barcode  *DecodeResult
	Err      error
}

// OK reports whether the page was written.
func (o SaveOutcome) OK() bool {
	return o.Err == nil
}

// RunResult summarizes a save run
type RunResult struct {
	RunID     string
	Outcomes  []SaveOutcome
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// RunState is the lifecycle of a save run
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageProcessing EventType = "page_processing"
	EventPageComplete   EventType = "page_complete"
	EventPageError      EventType = "page_error"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	PageNumber int         `json:"page_number,omitempty"`
	Total      int         `json:"total,omitempty"`
	Payload    interface{} `json:"payload,omitempty"` // Status message or *SaveOutcome
	Timestamp  time.Time   `json:"timestamp"`
}
