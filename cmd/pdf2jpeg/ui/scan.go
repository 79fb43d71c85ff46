package ui

import (
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ScanProgress shows a counter bar while pages are decoded.
type ScanProgress struct {
	progress *mpb.Progress
	bar      *mpb.Bar
}

// NewScanProgress creates a bar for total pages.
func NewScanProgress(name string, total int64) *ScanProgress {
	progress := mpb.New(mpb.WithWidth(48), mpb.WithOutput(stderr))
	bar := progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(
				decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 8}),
				" done",
			),
		),
	)
	return &ScanProgress{progress: progress, bar: bar}
}

// Increment marks one more page as decoded.
func (s *ScanProgress) Increment() {
	s.bar.Increment()
}

// Close completes the bar and waits for the final render.
func (s *ScanProgress) Close() {
	if !s.bar.Completed() {
		s.bar.Abort(false)
	}
	s.progress.Wait()
}
