package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary is what the CLI prints at the end of a batch.
type Summary struct {
	Chapters  int
	Completed int
	Failed    int
	Empty     int
	Images    int
	Skipped   int
	Broken    int
	Bytes     int64
	Elapsed   time.Duration
}

func (s Summary) Print(w io.Writer) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Download Summary:")
	_, _ = fmt.Fprintf(w, "Chapters: %d/%d completed", s.Completed, s.Chapters)
	if s.Failed > 0 || s.Empty > 0 {
		_, _ = fmt.Fprintf(w, " (%d failed, %d without images)", s.Failed, s.Empty)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Images:   %d saved, %d skipped, %d failed\n", s.Images, s.Skipped, s.Broken)
	_, _ = fmt.Fprintf(w, "Data:     %s\n", humanize.IBytes(uint64(max(s.Bytes, 0))))
	_, _ = fmt.Fprintf(w, "Time:     %s\n", s.Elapsed.Round(time.Second))
}
