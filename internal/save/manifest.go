package save

import (
	"bytes"
	"context"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spherical/pdf2jpeg/internal/domain"
)

// ManifestName is the object written next to the page images when enabled.
const ManifestName = "manifest.yaml"

// Manifest records what a save run produced.
type Manifest struct {
	RunID     string         `yaml:"run_id"`
	Source    string         `yaml:"source"`
	DPI       int            `yaml:"dpi"`
	StartedAt time.Time      `yaml:"started_at"`
	Duration  string         `yaml:"duration"`
	Succeeded int            `yaml:"succeeded"`
	Failed    int            `yaml:"failed"`
	Pages     []ManifestPage `yaml:"pages"`
}

// ManifestPage is one page entry of a Manifest.
type ManifestPage struct {
	Page     int    `yaml:"page"`
	File     string `yaml:"file,omitempty"`
	Location string `yaml:"location,omitempty"`
	Barcode  string `yaml:"barcode,omitempty"`
	Format   string `yaml:"format,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

// BuildManifest summarizes a finished run.
func BuildManifest(session *domain.Session, result *domain.RunResult) Manifest {
	m := Manifest{
		RunID:     result.RunID,
		Source:    session.SourcePath,
		DPI:       session.DPI,
		StartedAt: session.StartedAt,
		Duration:  result.Duration.Round(time.Millisecond).String(),
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Pages:     make([]ManifestPage, 0, len(result.Outcomes)),
	}

	for _, o := range result.Outcomes {
		page := ManifestPage{
			Page:     o.Index + 1,
			File:     o.FileName,
			Location: o.Location,
		}
		if o.Barcode != nil {
			page.Barcode = o.Barcode.Text
			page.Format = o.Barcode.Format
		}
		if o.Err != nil {
			page.Error = o.Err.Error()
		}
		m.Pages = append(m.Pages, page)
	}
	return m
}

func (s *Service) writeManifest(ctx context.Context, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return domain.SaveError("Failed to encode manifest", err)
	}

	location, err := s.sink.Put(ctx, ManifestName, bytes.NewReader(data), int64(len(data)), "application/yaml")
	if err != nil {
		return err
	}

	s.logger.Info().Str("path", location).Msg("Wrote manifest")
	return nil
}
