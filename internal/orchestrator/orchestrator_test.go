package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brogergvhs/comickd/internal/chapters"
	"github.com/brogergvhs/comickd/internal/downloader"
	"github.com/brogergvhs/comickd/internal/providers"
	"github.com/brogergvhs/comickd/internal/ui"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExtractor struct {
	extractFunc func(ctx context.Context, url string) (providers.ImageSet, error)
}

func (m *mockExtractor) Extract(ctx context.Context, url string) (providers.ImageSet, error) {
	if m.extractFunc != nil {
		return m.extractFunc(ctx, url)
	}
	return providers.ImageSet{ChapterURL: url}, nil
}

type mockDownloader struct {
	downloadFunc func(ctx context.Context, req downloader.Request) (downloader.Result, error)
}

func (m *mockDownloader) DownloadAll(ctx context.Context, req downloader.Request) (downloader.Result, error) {
	if m.downloadFunc != nil {
		return m.downloadFunc(ctx, req)
	}
	return downloader.Result{}, nil
}

type mockAssembler struct {
	mu    sync.Mutex
	built map[string]string
	err   error
}

func (m *mockAssembler) BuildDir(dir, out string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.built == nil {
		m.built = map[string]string{}
	}
	m.built[out] = dir
	return os.WriteFile(out, []byte("%PDF-1.7"), 0644)
}

func makeChapters(n int) []chapters.Chapter {
	var list []providers.Chapter
	for i := 1; i <= n; i++ {
		list = append(list, providers.Chapter{
			Number: float64(i),
			Title:  fmt.Sprintf("Chapter %d", i),
			URL:    fmt.Sprintf("https://comick.io/comic/x/c%d-chapter-%d", i, i),
		})
	}
	return chapters.Wrap(list)
}

func imagesFor(url string) providers.ImageSet {
	return providers.ImageSet{
		ChapterURL: url,
		URLs:       []string{url + "/1.jpg", url + "/2.jpg"},
		UserAgent:  "session-ua",
		Cookies:    map[string]string{"cf_clearance": "tok", "a": "1"},
	}
}

// writingDownloader saves one small file per URL, like the real one.
func writingDownloader() *mockDownloader {
	return &mockDownloader{downloadFunc: func(_ context.Context, req downloader.Request) (downloader.Result, error) {
		if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
			return downloader.Result{}, err
		}
		res := downloader.Result{}
		for i, u := range req.URLs {
			p := filepath.Join(req.OutputDir, downloader.FileName(i, len(req.URLs), u))
			if err := os.WriteFile(p, []byte("img"), 0644); err != nil {
				return res, err
			}
			res.Tasks = append(res.Tasks, downloader.Task{Index: i, URL: u, Path: p, State: downloader.Saved, Bytes: 3})
			res.Saved++
			res.Bytes += 3
		}
		return res, nil
	}}
}

func TestRun_PartialFailureKeepsGoing(t *testing.T) {
	const n = 12
	list := makeChapters(n)

	ex := &mockExtractor{extractFunc: func(_ context.Context, url string) (providers.ImageSet, error) {
		switch {
		case strings.HasSuffix(url, "chapter-3"):
			panic("boom")
		case strings.HasSuffix(url, "chapter-5"):
			return providers.ImageSet{ChapterURL: url}, errors.New("navigation timed out")
		}
		return imagesFor(url), nil
	}}

	inner := writingDownloader()
	dl := &mockDownloader{downloadFunc: func(ctx context.Context, req downloader.Request) (downloader.Result, error) {
		if strings.HasSuffix(req.Referer, "chapter-7") || strings.HasSuffix(req.Referer, "chapter-11") {
			return downloader.Result{}, errors.New("disk full")
		}
		return inner.DownloadAll(ctx, req)
	}}

	var (
		mu   sync.Mutex
		seen []int
	)
	log, hook := test.NewNullLogger()
	o := New(ex, dl, &mockAssembler{}, log)

	sum := o.Run(context.Background(), list, t.TempDir(), Options{
		Workers: 4,
		OnProgress: func(done, total, percent int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, n, total)
			assert.Equal(t, done*100/n, percent)
			seen = append(seen, done)
		},
	})

	require.Len(t, seen, n)
	for i, d := range seen {
		assert.Equal(t, i+1, d)
	}

	assert.Equal(t, n, sum.Total)
	assert.Equal(t, 3, sum.Failed)
	assert.Equal(t, 1, sum.Empty)
	assert.Equal(t, 8, sum.Completed)
	assert.Equal(t, 16, sum.Saved)

	assert.Equal(t, Failed, sum.Results[2].State)
	assert.ErrorIs(t, sum.Results[2].Err, ErrChapterPipeline)
	assert.Contains(t, sum.Results[2].Err.Error(), "panic: boom")
	assert.Equal(t, Failed, sum.Results[6].State)
	assert.Contains(t, sum.Results[6].Err.Error(), "downloading")
	assert.True(t, sum.Results[4].Empty)
	assert.Equal(t, Completed, sum.Results[4].State)

	failures := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "chapter failed" {
			failures++
		}
	}
	assert.Equal(t, 3, failures)
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32

	ex := &mockExtractor{extractFunc: func(_ context.Context, url string) (providers.ImageSet, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return providers.ImageSet{ChapterURL: url}, nil
	}}

	log, _ := test.NewNullLogger()
	counter := 0
	sum := New(ex, &mockDownloader{}, &mockAssembler{}, log).Run(context.Background(), makeChapters(20), t.TempDir(), Options{
		Workers:    3,
		OnProgress: func(done, _, _ int) { counter = done },
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 20, sum.Empty)
	assert.Equal(t, 20, counter)
}

func TestRun_PDFAndCleanup(t *testing.T) {
	out := t.TempDir()
	list := makeChapters(2)
	asm := &mockAssembler{}
	log, _ := test.NewNullLogger()

	var progressed atomic.Int32
	o := New(&mockExtractor{extractFunc: func(_ context.Context, url string) (providers.ImageSet, error) {
		return imagesFor(url), nil
	}}, writingDownloader(), asm, log)
	o.NewProgress = func(_ chapters.Chapter, images int) downloader.Progress {
		progressed.Add(int32(images))
		return nil
	}

	// a stray file keeps chapter 2's folder alive after cleanup
	require.NoError(t, os.MkdirAll(filepath.Join(out, "Chapter 2"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "Chapter 2", "notes.txt"), []byte("x"), 0644))

	sum := o.Run(context.Background(), list, out, Options{
		Workers:        2,
		ConvertToPDF:   true,
		DeleteAfterPDF: true,
		CBZ:            true,
	})

	assert.Equal(t, 2, sum.Completed)
	assert.Zero(t, sum.Failed)
	assert.Equal(t, int32(4), progressed.Load())

	assert.Equal(t, filepath.Join(out, "Chapter 1"), asm.built[filepath.Join(out, "Chapter 1.pdf")])
	assert.FileExists(t, filepath.Join(out, "Chapter 1.pdf"))
	assert.FileExists(t, filepath.Join(out, "Chapter 1.cbz"))
	assert.Equal(t, filepath.Join(out, "Chapter 1.cbz"), sum.Results[0].CBZPath)

	assert.NoDirExists(t, filepath.Join(out, "Chapter 1"))
	assert.DirExists(t, filepath.Join(out, "Chapter 2"))
	assert.FileExists(t, filepath.Join(out, "Chapter 2", "notes.txt"))
	assert.NoFileExists(t, filepath.Join(out, "Chapter 2", "001.jpg"))
}

func TestRun_PDFFailureSkipsCleanup(t *testing.T) {
	out := t.TempDir()
	log, _ := test.NewNullLogger()

	o := New(&mockExtractor{extractFunc: func(_ context.Context, url string) (providers.ImageSet, error) {
		return imagesFor(url), nil
	}}, writingDownloader(), &mockAssembler{err: errors.New("corrupt page")}, log)

	sum := o.Run(context.Background(), makeChapters(1), out, Options{ConvertToPDF: true, DeleteAfterPDF: true})

	assert.Equal(t, 1, sum.Failed)
	assert.Contains(t, sum.Results[0].Err.Error(), "converting-pdf")
	assert.FileExists(t, filepath.Join(out, "Chapter 1", "001.jpg"))
}

func TestRun_ForwardsSessionHeaders(t *testing.T) {
	log, _ := test.NewNullLogger()

	var got downloader.Request
	dl := &mockDownloader{downloadFunc: func(_ context.Context, req downloader.Request) (downloader.Result, error) {
		got = req
		return downloader.Result{}, nil
	}}
	ex := &mockExtractor{extractFunc: func(_ context.Context, url string) (providers.ImageSet, error) {
		return imagesFor(url), nil
	}}

	list := makeChapters(1)
	New(ex, dl, &mockAssembler{}, log).Run(context.Background(), list, t.TempDir(), Options{Workers: 1})

	assert.Equal(t, "session-ua", got.UserAgent)
	assert.Equal(t, "a=1; cf_clearance=tok", got.Cookie)
	assert.Equal(t, list[0].URL, got.Referer)
}

func TestRun_PanicReleasesProgressBar(t *testing.T) {
	log, _ := test.NewNullLogger()
	pm := ui.NewProgressManager(io.Discard)

	ex := &mockExtractor{extractFunc: func(_ context.Context, url string) (providers.ImageSet, error) {
		return imagesFor(url), nil
	}}
	dl := &mockDownloader{downloadFunc: func(_ context.Context, req downloader.Request) (downloader.Result, error) {
		req.Progress.Update(1, len(req.URLs), 10)
		panic("decoder exploded")
	}}

	o := New(ex, dl, &mockAssembler{}, log)
	o.NewProgress = func(c chapters.Chapter, _ int) downloader.Progress {
		return pm.Register("Ch." + c.Label())
	}

	sum := o.Run(context.Background(), makeChapters(2), t.TempDir(), Options{Workers: 2})
	assert.Equal(t, 2, sum.Failed)
	for _, r := range sum.Results {
		assert.ErrorIs(t, r.Err, ErrChapterPipeline)
		assert.Contains(t, r.Err.Error(), "decoder exploded")
	}

	closed := make(chan struct{})
	go func() {
		pm.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("progress manager still waiting on a chapter bar")
	}
}

func TestStart(t *testing.T) {
	log, _ := test.NewNullLogger()
	o := New(&mockExtractor{}, &mockDownloader{}, &mockAssembler{}, log)

	b := o.Start(context.Background(), makeChapters(3), t.TempDir(), Options{Workers: 2})

	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish")
	}
	assert.Equal(t, 3, b.Wait().Empty)
}

func TestProgressCounter(t *testing.T) {
	c := NewProgressCounter(3, nil)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Increment()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, c.Done())
	assert.Equal(t, 100, c.Percent())
	assert.Equal(t, 100, NewProgressCounter(0, nil).Percent())
}

func TestJobState_String(t *testing.T) {
	assert.Equal(t, "converting-pdf", ConvertingPDF.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "state(42)", JobState(42).String())
}
