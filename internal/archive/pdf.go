// Package archive bundles a chapter folder into a single file and cleans the
// folder up afterwards.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/webp"
)

var ErrNoImages = errors.New("no images to bundle")

func init() {
	// pdfcpu would otherwise write a config.yml into the user's config dir
	api.DisableConfigDir()
}

// PDFAssembler builds one PDF page per image. Pages that are not JPEG are
// re-encoded as JPEG at Quality first.
type PDFAssembler struct {
	Quality int
	Log     logrus.FieldLogger
}

func NewPDFAssembler(quality int, log logrus.FieldLogger) *PDFAssembler {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	return &PDFAssembler{Quality: quality, Log: log}
}

// Build writes images, sorted by file name, to out. An existing out is
// replaced.
func (a *PDFAssembler) Build(images []string, out string) error {
	if len(images) == 0 {
		return ErrNoImages
	}

	sorted := append([]string(nil), images...)
	sort.Slice(sorted, func(i, j int) bool {
		return filepath.Base(sorted[i]) < filepath.Base(sorted[j])
	})

	tmp, err := os.MkdirTemp("", "comickd-pdf-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	pages := make([]string, 0, len(sorted))
	for _, img := range sorted {
		page, err := a.normalize(img, tmp)
		if err != nil {
			if a.Log != nil {
				a.Log.WithError(err).WithField("image", img).Warn("skipping unreadable page")
			}
			continue
		}
		pages = append(pages, page)
	}
	if len(pages) == 0 {
		return ErrNoImages
	}

	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := api.ImportImagesFile(pages, out, nil, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("pdf %s: %w", out, err)
	}

	return nil
}

// BuildDir bundles every image file found directly in dir.
func (a *PDFAssembler) BuildDir(dir, out string) error {
	images, err := ListImages(dir)
	if err != nil {
		return err
	}
	return a.Build(images, out)
}

// normalize returns a path pdfcpu can import: the original for JPEG input,
// otherwise a JPEG copy inside tmp.
func (a *PDFAssembler) normalize(path, tmp string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	format, err := detectImageFormat(data)
	if err != nil {
		return "", err
	}
	if format == "jpeg" {
		return path, nil
	}

	var img image.Image
	r := bytes.NewReader(data)
	switch format {
	case "png":
		img, err = png.Decode(r)
	case "gif":
		img, err = gif.Decode(r)
	case "webp":
		img, err = webp.Decode(r)
	}
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", format, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dst := filepath.Join(tmp, base+".jpg")
	if err := imaging.Save(img, dst, imaging.JPEGQuality(a.Quality)); err != nil {
		return "", err
	}

	return dst, nil
}

// detectImageFormat looks at magic bytes; file extensions from the CDN are
// not trustworthy.
func detectImageFormat(data []byte) (string, error) {
	if len(data) < 12 {
		return "", errors.New("data too short to determine format")
	}

	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg", nil
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "png", nil
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "gif", nil
	case string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "webp", nil
	}

	return "", errors.New("unknown image format")
}
