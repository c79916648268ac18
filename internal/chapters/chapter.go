package chapters

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/brogergvhs/comickd/internal/providers"
	"github.com/brogergvhs/comickd/internal/util"
)

var (
	reComicSlug = regexp.MustCompile(`/comic/([^/?#]+)`)
	reChapterID = regexp.MustCompile(`chapter-([^/?#]+)`)
)

type Chapter struct {
	providers.Chapter
}

func Wrap(list []providers.Chapter) []Chapter {
	out := make([]Chapter, len(list))
	for i, c := range list {
		out[i] = Chapter{Chapter: c}
	}
	return out
}

// DirName is the folder the chapter's images are written to.
func (c Chapter) DirName() string {
	return util.SanitizeFilename(c.Title)
}

func (c Chapter) PDFName() string {
	return c.DirName() + ".pdf"
}

func (c Chapter) CBZName() string {
	return c.DirName() + ".cbz"
}

func (c Chapter) Dir(out string) string {
	return filepath.Join(out, c.DirName())
}

// ComicSlug is the comic's path segment, used as the default output folder.
func ComicSlug(comicURL string) string {
	if m := reComicSlug.FindStringSubmatch(comicURL); m != nil {
		return m[1]
	}
	return "manga"
}

// IsChapterURL reports whether u points at a single chapter rather than a
// comic's landing page.
func IsChapterURL(u string) bool {
	return strings.Contains(u, "/comic/") && strings.Contains(u, "chapter")
}

// SingleChapter builds the Chapter for a direct chapter link.
func SingleChapter(u string) Chapter {
	title := "chapter"
	if m := reChapterID.FindStringSubmatch(u); m != nil {
		title = "Chapter " + m[1]
	}
	return Chapter{Chapter: providers.Chapter{Title: title, URL: u}}
}
