package save

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/spherical/pdf2jpeg/internal/barcode"
	"github.com/spherical/pdf2jpeg/internal/domain"
	"github.com/spherical/pdf2jpeg/internal/enhance"
	"github.com/spherical/pdf2jpeg/internal/naming"
	"github.com/spherical/pdf2jpeg/internal/storage"
	"github.com/spherical/pdf2jpeg/internal/testutil"
)

func newService(t *testing.T, opts Options, pages []domain.PageImage) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	sink, err := storage.NewLocalSink(dir)
	require.NoError(t, err)
	return NewService(&fakeRasterizer{pages: pages}, enhance.New(), barcode.NewDecoder(), sink, opts, nil), dir
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func scenarioPages(t *testing.T) []domain.PageImage {
	return testutil.Pages(testutil.BlankPage(), testutil.QRPage(t, "ABC123"), testutil.BlankPage())
}

func TestService_Process_NamesPagesByBarcode(t *testing.T) {
	svc, dir := newService(t, DefaultOptions(), scenarioPages(t))

	result, err := svc.Process(context.Background(), "scan.pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"ABC123.jpeg", "page_1.jpeg", "page_3.jpeg"}, listFiles(t, dir))

	require.Len(t, result.Outcomes, 3)
	assert.Nil(t, result.Outcomes[0].Barcode)
	require.NotNil(t, result.Outcomes[1].Barcode)
	assert.Equal(t, "ABC123", result.Outcomes[1].Barcode.Text)
	assert.Equal(t, filepath.Join(dir, "ABC123.jpeg"), result.Outcomes[1].Location)
}

func TestService_Save_WritesEnhancedImages(t *testing.T) {
	svc, dir := newService(t, DefaultOptions(), testutil.Pages(testutil.BlankPage()))

	_, err := svc.Process(context.Background(), "scan.pdf", nil)
	require.NoError(t, err)

	img, err := imaging.Open(filepath.Join(dir, "page_1.jpeg"))
	require.NoError(t, err)
	assert.Equal(t, 504, img.Bounds().Dx())
	assert.Equal(t, 672, img.Bounds().Dy())
	assert.Equal(t, color.GrayModel, jpegColorModel(t, filepath.Join(dir, "page_1.jpeg")))
}

func jpegColorModel(t *testing.T, path string) color.Model {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.ColorModel
}

func TestService_Save_KeepOriginal(t *testing.T) {
	opts := DefaultOptions()
	opts.KeepOriginal = true
	svc, dir := newService(t, opts, scenarioPages(t))

	_, err := svc.Process(context.Background(), "scan.pdf", nil)
	require.NoError(t, err)

	img, err := imaging.Open(filepath.Join(dir, "ABC123.jpeg"))
	require.NoError(t, err)
	assert.Equal(t, testutil.PageWidth, img.Bounds().Dx())
	assert.Equal(t, testutil.PageHeight, img.Bounds().Dy())
	assert.Equal(t, color.YCbCrModel, jpegColorModel(t, filepath.Join(dir, "ABC123.jpeg")))
}

func TestService_Save_DuplicateValues(t *testing.T) {
	pages := func() []domain.PageImage {
		return testutil.Pages(testutil.QRPage(t, "DUP"), testutil.QRPage(t, "DUP"), testutil.BlankPage())
	}

	t.Run("overwrite keeps last write", func(t *testing.T) {
		svc, dir := newService(t, DefaultOptions(), pages())

		result, err := svc.Process(context.Background(), "scan.pdf", nil)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Succeeded)
		assert.Equal(t, []string{"DUP.jpeg", "page_3.jpeg"}, listFiles(t, dir))
	})

	t.Run("suffix keeps both", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Collision = naming.Suffix
		svc, dir := newService(t, opts, pages())

		_, err := svc.Process(context.Background(), "scan.pdf", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"DUP.jpeg", "DUP_2.jpeg", "page_3.jpeg"}, listFiles(t, dir))
	})
}

func TestService_Save_WriteFailureContinues(t *testing.T) {
	dir := t.TempDir()
	local, err := storage.NewLocalSink(dir)
	require.NoError(t, err)
	sink := &failingSink{Sink: local, fail: map[string]bool{"page_2.jpeg": true}}

	pages := testutil.Pages(testutil.BlankPage(), testutil.BlankPage(), testutil.BlankPage())
	svc := NewService(&fakeRasterizer{pages: pages}, enhance.New(), barcode.NewDecoder(), sink, DefaultOptions(), nil)

	result, err := svc.Process(context.Background(), "scan.pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, domain.IsType(result.Outcomes[1].Err, domain.ErrorTypeIO))
	assert.Equal(t, []string{"page_1.jpeg", "page_3.jpeg"}, listFiles(t, dir))
}

func TestService_Save_DecodeFailureSkipsPage(t *testing.T) {
	dir := t.TempDir()
	sink, err := storage.NewLocalSink(dir)
	require.NoError(t, err)

	decoder := &erroringDecoder{failOn: 2, next: barcode.NewDecoder()}
	svc := NewService(&fakeRasterizer{pages: scenarioPages(t)}, enhance.New(), decoder, sink, DefaultOptions(), nil)

	result, err := svc.Process(context.Background(), "scan.pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.True(t, domain.IsType(result.Outcomes[1].Err, domain.ErrorTypeDecode))
	assert.Equal(t, []string{"page_1.jpeg", "page_3.jpeg"}, listFiles(t, dir))
}

func TestService_Process_RasterizerFailure(t *testing.T) {
	dir := t.TempDir()
	sink, err := storage.NewLocalSink(dir)
	require.NoError(t, err)

	convErr := domain.ConversionError("Failed to open PDF", errors.New("corrupt"))
	svc := NewService(&fakeRasterizer{err: convErr}, enhance.New(), barcode.NewDecoder(), sink, DefaultOptions(), nil)

	events := make(chan domain.StreamEvent, 10)
	result, err := svc.Process(context.Background(), "broken.pdf", events)
	assert.ErrorIs(t, err, convErr)
	assert.Nil(t, result)
	assert.Empty(t, listFiles(t, dir))

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, (<-events).Type)
}

func TestService_Save_EmptySession(t *testing.T) {
	svc, dir := newService(t, DefaultOptions(), nil)

	result, err := svc.Save(context.Background(), &domain.Session{ID: "empty"}, nil)
	assert.Nil(t, result)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	assert.Empty(t, listFiles(t, dir))
}

func TestService_Save_EventOrder(t *testing.T) {
	for _, workers := range []int{1, 3} {
		opts := DefaultOptions()
		opts.Workers = workers
		svc, _ := newService(t, opts, scenarioPages(t))

		session, err := svc.Convert(context.Background(), "scan.pdf")
		require.NoError(t, err)

		events := make(chan domain.StreamEvent, 100)
		_, err = svc.Save(context.Background(), session, events)
		require.NoError(t, err)
		close(events)

		var got []string
		for evt := range events {
			got = append(got, fmt.Sprintf("%s:%d", evt.Type, evt.PageNumber))
		}
		assert.Equal(t, []string{
			"start:0",
			"page_processing:1", "page_complete:1",
			"page_processing:2", "page_complete:2",
			"page_processing:3", "page_complete:3",
			"complete:0",
		}, got, "workers=%d", workers)
	}
}

func TestService_Save_ParallelMatchesSequential(t *testing.T) {
	opts := DefaultOptions()
	opts.Workers = 4
	pages := testutil.Pages(
		testutil.QRPage(t, "A-1"), testutil.BlankPage(), testutil.Code128Page(t, "B-2"),
		testutil.BlankPage(), testutil.QRPage(t, "C-3"),
	)
	svc, dir := newService(t, opts, pages)

	result, err := svc.Process(context.Background(), "scan.pdf", nil)
	require.NoError(t, err)

	for i, o := range result.Outcomes {
		assert.Equal(t, i, o.Index)
	}
	assert.Equal(t, []string{"A-1.jpeg", "B-2.jpeg", "C-3.jpeg", "page_2.jpeg", "page_4.jpeg"}, listFiles(t, dir))
}

func TestService_Save_ReleasesPages(t *testing.T) {
	svc, _ := newService(t, DefaultOptions(), scenarioPages(t))

	session, err := svc.Convert(context.Background(), "scan.pdf")
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), session, nil)
	require.NoError(t, err)

	assert.Empty(t, session.Pages)
}

func TestService_SessionIsSavedOnce(t *testing.T) {
	svc, dir := newService(t, DefaultOptions(), scenarioPages(t))

	session, err := svc.Convert(context.Background(), "scan.pdf")
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), session, nil)
	require.NoError(t, err)
	files := listFiles(t, dir)

	require.NotPanics(t, func() {
		_, err = svc.Scan(context.Background(), session)
	})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	require.NotPanics(t, func() {
		_, err = svc.Save(context.Background(), session, nil)
	})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	assert.Equal(t, files, listFiles(t, dir))
}

func TestService_Save_MissingPageImage(t *testing.T) {
	pages := scenarioPages(t)
	pages[0].Image = nil
	svc, dir := newService(t, DefaultOptions(), pages)

	result, err := svc.Process(context.Background(), "scan.pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, domain.IsType(result.Outcomes[0].Err, domain.ErrorTypeDecode))
	assert.Equal(t, []string{"ABC123.jpeg", "page_3.jpeg"}, listFiles(t, dir))
}

func TestService_Save_Cancelled(t *testing.T) {
	svc, dir := newService(t, DefaultOptions(), scenarioPages(t))
	session, err := svc.Convert(context.Background(), "scan.pdf")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Save(ctx, session, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Outcomes)
	assert.Empty(t, listFiles(t, dir))
}

func TestService_Save_Manifest(t *testing.T) {
	opts := DefaultOptions()
	opts.Manifest = true
	svc, dir := newService(t, opts, scenarioPages(t))

	result, err := svc.Process(context.Background(), "scan.pdf", nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, result.RunID, m.RunID)
	assert.Equal(t, "scan.pdf", m.Source)
	assert.Equal(t, 150, m.DPI)
	assert.Equal(t, 3, m.Succeeded)
	require.Len(t, m.Pages, 3)
	assert.Equal(t, "page_1.jpeg", m.Pages[0].File)
	assert.Equal(t, "ABC123", m.Pages[1].Barcode)
	assert.Equal(t, "QR_CODE", m.Pages[1].Format)
}

func TestService_Scan(t *testing.T) {
	svc, dir := newService(t, DefaultOptions(), scenarioPages(t))
	session, err := svc.Convert(context.Background(), "scan.pdf")
	require.NoError(t, err)

	results, err := svc.Scan(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Nil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, "ABC123", results[1].Text)
	assert.Nil(t, results[2])
	assert.Empty(t, listFiles(t, dir))
}

func TestService_ScanPage(t *testing.T) {
	svc, _ := newService(t, DefaultOptions(), nil)

	result, err := svc.ScanPage(domain.PageImage{Index: 0, Image: testutil.QRPage(t, "SCAN-1")})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "SCAN-1", result.Text)

	result, err = svc.ScanPage(domain.PageImage{Index: 1, Image: testutil.BlankPage()})
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = svc.ScanPage(domain.PageImage{Index: 2})
	assert.Nil(t, result)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDecode))
}

func TestService_ScanEmptySession(t *testing.T) {
	svc, _ := newService(t, DefaultOptions(), nil)

	_, err := svc.Scan(context.Background(), &domain.Session{ID: "empty"})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestService_Save_BoundedLookAhead(t *testing.T) {
	const workers = 2
	opts := DefaultOptions()
	opts.Workers = workers

	pages := make([]image.Image, 16)
	for i := range pages {
		pages[i] = testutil.BlankPage()
	}
	enhancer := &countingEnhancer{}
	dir := t.TempDir()
	local, err := storage.NewLocalSink(dir)
	require.NoError(t, err)
	sink := &slowSink{Sink: local, enhancer: enhancer, delay: 20 * time.Millisecond}

	svc := NewService(&fakeRasterizer{pages: testutil.Pages(pages...)}, enhancer, barcode.NewDecoder(), sink, opts, nil)
	result, err := svc.Process(context.Background(), "scan.pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, 16, result.Succeeded)
	assert.LessOrEqual(t, sink.maxHeld, int64(workers+1))
}

func TestService_Save_WorkerPanicStopsLookAhead(t *testing.T) {
	opts := DefaultOptions()
	opts.Workers = 2

	pages := make([]image.Image, 40)
	for i := range pages {
		pages[i] = testutil.BlankPage()
	}
	enhancer := &countingEnhancer{panicFirst: true, delay: 10 * time.Millisecond}
	sink, err := storage.NewLocalSink(t.TempDir())
	require.NoError(t, err)

	svc := NewService(&fakeRasterizer{pages: testutil.Pages(pages...)}, enhancer, barcode.NewDecoder(), sink, opts, nil)
	session, err := svc.Convert(context.Background(), "scan.pdf")
	require.NoError(t, err)

	assert.Panics(t, func() {
		_, _ = svc.Save(context.Background(), session, nil)
	})
	assert.Less(t, enhancer.started.Load(), int64(10))
}
