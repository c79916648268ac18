package providers

import (
	"context"
	"strconv"
)

// Chapter is one entry of a resolved chapter list. The list holds at most one
// Chapter per Number.
type Chapter struct {
	Number float64
	Title  string
	URL    string
}

// Label renders Number without a trailing ".0".
func (c Chapter) Label() string {
	return strconv.FormatFloat(c.Number, 'f', -1, 64)
}

// ImageSet is the ordered list of page images of one chapter. URLs keep DOM
// order, which is also the reading order.
type ImageSet struct {
	ChapterURL string
	URLs       []string
	UserAgent  string
	Cookies    map[string]string
}

// Comic is a search hit.
type Comic struct {
	Title string
	URL   string
}

type ChapterResolver interface {
	Resolve(ctx context.Context, comicURL string) ([]Chapter, error)
}

type ImageExtractor interface {
	Extract(ctx context.Context, chapterURL string) (ImageSet, error)
}

type ComicSearcher interface {
	Search(ctx context.Context, query string) ([]Comic, error)
}
