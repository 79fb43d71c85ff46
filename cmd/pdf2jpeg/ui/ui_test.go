package ui

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	InitUI(true, false)
	t.Cleanup(func() { SetOutput(os.Stdout, os.Stderr) })
	return &out, &errOut
}

func TestMessages(t *testing.T) {
	out, errOut := captureOutput(t)

	Success("saved %d images", 3)
	Warning("%d pages failed", 1)
	Info("destination: %s", "out")
	Step("hidden unless verbose")
	Error("conversion failed: %s", "boom")

	assert.Equal(t, "✓ saved 3 images\n⚠ 1 pages failed\nℹ destination: out\n", out.String())
	assert.Equal(t, "✗ conversion failed: boom\n", errOut.String())
}

func TestStep_Verbose(t *testing.T) {
	out, _ := captureOutput(t)
	InitUI(true, true)
	t.Cleanup(func() { InitUI(true, false) })

	Step("rendering page %d", 2)
	assert.Equal(t, "→ rendering page 2\n", out.String())
}

func TestTable(t *testing.T) {
	out, _ := captureOutput(t)

	Table([]string{"Page", "File"}, [][]string{{"1", "ABC123.jpeg"}, {"2", "page_2.jpeg"}})

	assert.Contains(t, out.String(), "Page  File")
	assert.Contains(t, out.String(), "1     ABC123.jpeg")
	assert.Contains(t, out.String(), "2     page_2.jpeg")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}

func TestProgressBar_WritesToStderr(t *testing.T) {
	_, errOut := captureOutput(t)

	bar := NewProgressBar(2, "Saving images")
	bar.Describe("Saving image 1 of 2")
	bar.Set(1)
	bar.Set(2)
	bar.Finish()

	assert.Contains(t, errOut.String(), "Saving image 1 of 2")
}
