// Package orchestrator runs extraction, download and bundling for a batch of
// chapters with bounded parallelism. A failing chapter is logged and counted;
// it never stops the batch.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"

	"github.com/brogergvhs/comickd/internal/archive"
	"github.com/brogergvhs/comickd/internal/chapters"
	"github.com/brogergvhs/comickd/internal/downloader"
	"github.com/brogergvhs/comickd/internal/providers"
	"github.com/brogergvhs/comickd/internal/session"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrChapterPipeline = errors.New("chapter pipeline failed")

type JobState int

const (
	Pending JobState = iota
	Extracting
	Downloading
	ConvertingPDF
	BundlingCBZ
	CleaningUp
	Completed
	Failed
)

func (s JobState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Extracting:
		return "extracting"
	case Downloading:
		return "downloading"
	case ConvertingPDF:
		return "converting-pdf"
	case BundlingCBZ:
		return "bundling-cbz"
	case CleaningUp:
		return "cleaning-up"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Downloader interface {
	DownloadAll(ctx context.Context, req downloader.Request) (downloader.Result, error)
}

type Assembler interface {
	BuildDir(dir, out string) error
}

type Options struct {
	Workers        int
	ConvertToPDF   bool
	DeleteAfterPDF bool
	CBZ            bool
	// OnProgress is called once per finished chapter, in order.
	OnProgress func(done, total, percent int)
}

// ChapterResult is the outcome of one ChapterJob.
type ChapterResult struct {
	Chapter   chapters.Chapter
	State     JobState
	Empty     bool
	Downloads downloader.Result
	PDFPath   string
	CBZPath   string
	Err       error
}

type Summary struct {
	Total     int
	Completed int
	Failed    int
	Empty     int
	Saved     int
	Skipped   int
	Broken    int
	Bytes     int64
	Results   []ChapterResult
}

type Orchestrator struct {
	extractor  providers.ImageExtractor
	downloader Downloader
	pdf        Assembler
	log        logrus.FieldLogger

	// NewProgress, if set, supplies the image progress sink of a chapter.
	NewProgress func(c chapters.Chapter, images int) downloader.Progress
}

func New(ex providers.ImageExtractor, dl Downloader, pdf Assembler, log logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		extractor:  ex,
		downloader: dl,
		pdf:        pdf,
		log:        log,
	}
}

// Batch is a running Start call.
type Batch struct {
	done    chan struct{}
	summary Summary
}

func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait blocks until every chapter reached a terminal state.
func (b *Batch) Wait() Summary {
	<-b.done
	return b.summary
}

// Start runs the batch in the background.
func (o *Orchestrator) Start(ctx context.Context, list []chapters.Chapter, outputDir string, opts Options) *Batch {
	b := &Batch{done: make(chan struct{})}
	go func() {
		defer close(b.done)
		b.summary = o.Run(ctx, list, outputDir, opts)
	}()
	return b
}

// Run processes every chapter and returns when all are done.
func (o *Orchestrator) Run(ctx context.Context, list []chapters.Chapter, outputDir string, opts Options) Summary {
	counter := NewProgressCounter(len(list), opts.OnProgress)
	results := make([]ChapterResult, len(list))

	var g errgroup.Group
	g.SetLimit(max(1, opts.Workers))

	for i, ch := range list {
		g.Go(func() error {
			results[i] = o.runJob(ctx, ch, outputDir, opts, counter)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{Total: len(list), Results: results}
	for _, r := range results {
		switch {
		case r.State == Failed:
			sum.Failed++
		case r.Empty:
			sum.Empty++
		default:
			sum.Completed++
		}
		sum.Saved += r.Downloads.Saved
		sum.Skipped += r.Downloads.Skipped
		sum.Broken += r.Downloads.Failed
		sum.Bytes += r.Downloads.Bytes
	}

	o.log.WithFields(logrus.Fields{
		"completed": sum.Completed,
		"failed":    sum.Failed,
		"empty":     sum.Empty,
		"skipped":   sum.Skipped,
		"broken":    sum.Broken,
	}).Info("batch finished")

	return sum
}

func (o *Orchestrator) runJob(
	ctx context.Context,
	ch chapters.Chapter,
	outputDir string,
	opts Options,
	counter *ProgressCounter,
) (res ChapterResult) {
	res = ChapterResult{Chapter: ch, State: Pending}
	log := o.log.WithFields(logrus.Fields{"chapter": ch.Title, "url": ch.URL})

	setState := func(s JobState) {
		res.State = s
		log.WithField("state", s).Debug("chapter state")
	}
	fail := func(err error) ChapterResult {
		state := res.State
		res.Err = fmt.Errorf("%w: %s: %w", ErrChapterPipeline, state, err)
		res.State = Failed
		log.WithError(err).WithField("state", state).Error("chapter failed")
		return res
	}

	var progress downloader.Progress

	defer func() {
		if r := recover(); r != nil {
			closeProgress(progress)
			state := res.State
			res.State = Failed
			res.Err = fmt.Errorf("%w: %s: panic: %v", ErrChapterPipeline, state, r)
			log.WithFields(logrus.Fields{"state": state, "panic": r, "stack": string(debug.Stack())}).
				Error("chapter failed")
		}
		counter.Increment()
	}()

	setState(Extracting)
	set, err := o.extractor.Extract(ctx, ch.URL)
	if err != nil {
		log.WithError(err).Warn("image extraction failed")
	}
	if len(set.URLs) == 0 {
		log.Warn("no images found, skipping chapter")
		res.Empty = true
		setState(Completed)
		return res
	}

	setState(Downloading)
	dir := ch.Dir(outputDir)

	if o.NewProgress != nil {
		progress = o.NewProgress(ch, len(set.URLs))
	}

	res.Downloads, err = o.downloader.DownloadAll(ctx, downloader.Request{
		URLs:      set.URLs,
		OutputDir: dir,
		UserAgent: set.UserAgent,
		Cookie:    session.Session{Cookies: set.Cookies}.CookieHeader(),
		Referer:   ch.URL,
		Progress:  progress,
	})
	if err != nil {
		closeProgress(progress)
		return fail(err)
	}

	log.WithFields(logrus.Fields{
		"saved":   res.Downloads.Saved,
		"skipped": res.Downloads.Skipped,
		"failed":  res.Downloads.Failed,
	}).Info("chapter downloaded")

	if opts.ConvertToPDF {
		setState(ConvertingPDF)
		out := filepath.Join(outputDir, ch.PDFName())
		if err := o.pdf.BuildDir(dir, out); err != nil {
			return fail(err)
		}
		res.PDFPath = out
	}

	if opts.CBZ {
		setState(BundlingCBZ)
		images, err := archive.ListImages(dir)
		if err != nil {
			return fail(err)
		}
		out := filepath.Join(outputDir, ch.CBZName())
		if err := archive.CreateCBZ(images, out); err != nil {
			return fail(err)
		}
		res.CBZPath = out
	}

	if opts.ConvertToPDF && opts.DeleteAfterPDF {
		setState(CleaningUp)
		if !archive.CleanupChapterDir(dir) {
			log.WithField("dir", dir).Debug("chapter folder kept")
		}
	}

	setState(Completed)
	return res
}

// closeProgress releases a sink the downloader never finished, so bar
// renderers waiting on it can return. Sinks must tolerate a second close.
func closeProgress(p downloader.Progress) {
	switch p := p.(type) {
	case nil:
	case interface{ Abort() }:
		p.Abort()
	default:
		p.MarkDone()
	}
}
