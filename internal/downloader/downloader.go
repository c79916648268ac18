package downloader

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brogergvhs/comickd/internal/retry"

	"github.com/sirupsen/logrus"
)

var (
	ErrTransport  = errors.New("transport error")
	ErrNotImage   = errors.New("response is not an image")
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

type TaskState int

const (
	Pending TaskState = iota
	Saved
	SkippedNonImage
	FailedExhausted
)

func (s TaskState) String() string {
	switch s {
	case Saved:
		return "saved"
	case SkippedNonImage:
		return "skipped"
	case FailedExhausted:
		return "failed"
	default:
		return "pending"
	}
}

// Task is one image of a chapter. Index is its position in DOM order and
// fixes the file name before any download starts.
type Task struct {
	Index    int
	URL      string
	Path     string
	State    TaskState
	Attempts int
	Bytes    int64
	Err      error
}

// Progress receives per-chapter counters. ui.ProgressHandle implements it.
type Progress interface {
	Update(done, total int, bytes int64)
	MarkDone()
}

type Request struct {
	URLs      []string
	OutputDir string
	UserAgent string
	// Cookie is sent as-is when not empty.
	Cookie string
	// Referer must be the chapter page; the CDN rejects anything else.
	Referer  string
	Progress Progress
}

type Result struct {
	Tasks   []Task
	Saved   int
	Skipped int
	Failed  int
	Bytes   int64
}

// Files lists the saved images in page order.
func (r Result) Files() []string {
	out := make([]string, 0, r.Saved)
	for _, t := range r.Tasks {
		if t.State == Saved {
			out = append(out, t.Path)
		}
	}
	return out
}

type Options struct {
	Workers     int
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
	Headers     http.Header
}

func DefaultOptions() Options {
	return Options{
		Workers:     10,
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		Timeout:     30 * time.Second,
		Headers:     DefaultHeaders(),
	}
}

func DefaultHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	return h
}

type Downloader struct {
	client *http.Client
	opts   Options
	log    logrus.FieldLogger
}

func New(c *http.Client, opts Options, log logrus.FieldLogger) *Downloader {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Headers == nil {
		opts.Headers = DefaultHeaders()
	}
	return &Downloader{client: c, opts: opts, log: log}
}

type chapterState struct {
	mu          sync.Mutex
	doneImages  int
	totalImages int
	doneBytes   int64
	ph          Progress
}

func (cs *chapterState) addBytes(delta int64) {
	cs.mu.Lock()
	cs.doneBytes += delta
	cs.ph.Update(cs.doneImages, cs.totalImages, cs.doneBytes)
	cs.mu.Unlock()
}

func (cs *chapterState) finishImage() {
	cs.mu.Lock()
	cs.doneImages++
	cs.ph.Update(cs.doneImages, cs.totalImages, cs.doneBytes)
	cs.mu.Unlock()
}

// FileName is the 1-based index zero-padded to at least three digits, or to
// the width of total when that is wider, so names sort in page order. The
// extension comes from the URL path.
func FileName(index, total int, rawURL string) string {
	ext := "jpg"
	if u, err := url.Parse(rawURL); err == nil {
		if e := path.Ext(u.Path); len(e) > 1 {
			ext = strings.ToLower(e[1:])
		}
	}
	width := max(3, len(strconv.Itoa(total)))
	return fmt.Sprintf("%0*d.%s", width, index+1, ext)
}

// DownloadAll fetches every URL into req.OutputDir with a bounded worker pool.
// Per-image failures are recorded in the Result, never returned; the only
// error is failing to create the output directory.
func (d *Downloader) DownloadAll(ctx context.Context, req Request) (Result, error) {
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", req.OutputDir, err)
	}

	total := len(req.URLs)
	tasks := make([]Task, total)
	for i, u := range req.URLs {
		tasks[i] = Task{
			Index: i,
			URL:   u,
			Path:  filepath.Join(req.OutputDir, FileName(i, total, u)),
		}
	}

	ph := req.Progress
	if ph == nil {
		ph = nopProgress{}
	}

	headers := d.opts.Headers.Clone()
	if req.UserAgent != "" {
		headers.Set("User-Agent", req.UserAgent)
	}
	if req.Cookie != "" {
		headers.Set("Cookie", req.Cookie)
	}
	if req.Referer != "" {
		headers.Set("Referer", req.Referer)
	}

	workers := min(d.opts.Workers, max(total, 1))
	cs := &chapterState{totalImages: total, ph: ph}
	ph.Update(0, total, 0)

	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			d.run(ctx, &tasks[i], headers, cs)
			cs.finishImage()
		}
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go worker()
	}

dispatch:
	for i := range tasks {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}

	close(jobs)
	wg.Wait()
	ph.MarkDone()

	res := Result{Tasks: tasks}
	for i := range tasks {
		t := &tasks[i]
		if t.State == Pending {
			t.State = FailedExhausted
			t.Err = ctx.Err()
		}

		switch t.State {
		case Saved:
			res.Saved++
			res.Bytes += t.Bytes
		case SkippedNonImage:
			res.Skipped++
		case FailedExhausted:
			res.Failed++
		}
	}

	return res, nil
}

func (d *Downloader) run(ctx context.Context, t *Task, headers http.Header, cs *chapterState) {
	log := d.log.WithFields(logrus.Fields{"image": t.Index + 1, "url": t.URL})

	written, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: d.opts.MaxAttempts,
		Delay:       d.opts.RetryDelay,
		Retryable:   func(err error) bool { return errors.Is(err, ErrTransport) },
		OnRetry: func(attempt int, err error) {
			log.WithError(err).WithField("attempt", attempt).Debug("retrying image")
		},
	}, func(ctx context.Context, attempt int) (int64, error) {
		t.Attempts = attempt
		n, err := d.fetch(ctx, t, headers, cs.addBytes)
		if err != nil {
			cs.addBytes(-n)
		}
		return n, err
	})

	t.Err = err
	switch {
	case err == nil:
		t.State = Saved
		t.Bytes = written
	case errors.Is(err, ErrNotImage):
		t.State = SkippedNonImage
		log.WithError(err).Warn("skipping non-image response")
	default:
		t.State = FailedExhausted
		_ = os.Remove(t.Path)
		log.WithError(err).WithField("attempts", t.Attempts).Warn("image failed")
	}
}

// fetch performs one attempt. It returns the bytes written so far, so the
// caller can roll progress back on failure.
func (d *Downloader) fetch(ctx context.Context, t *Task, headers http.Header, addBytes func(int64)) (int64, error) {
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return 0, err
	}
	req.Header = headers.Clone()

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return 0, fmt.Errorf("%w: %w %d", ErrTransport, ErrHTTPStatus, resp.StatusCode)
		}
		return 0, fmt.Errorf("%w %d", ErrHTTPStatus, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if mt, _, _ := mime.ParseMediaType(ct); !strings.HasPrefix(mt, "image/") {
		return 0, fmt.Errorf("%w: %q", ErrNotImage, ct)
	}

	f, err := os.Create(t.Path)
	if err != nil {
		return 0, err
	}

	var last int64
	written, err := copyWithProgress(f, resp.Body, func(done int64) {
		addBytes(done - last)
		last = done
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return written, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	return written, nil
}

type nopProgress struct{}

func (nopProgress) Update(int, int, int64) {}
func (nopProgress) MarkDone()              {}
