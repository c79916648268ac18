package archive

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".avif": true,
	".bmp":  true,
}

func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// ListImages returns the image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() && IsImageFile(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeleteImages removes the image files in dir and reports how many went.
func DeleteImages(dir string) (int, error) {
	images, err := ListImages(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, img := range images {
		if err := os.Remove(img); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// CleanupChapterDir deletes the chapter's images and then the folder if that
// left it empty. It never fails; the return value tells whether the folder is
// gone.
func CleanupChapterDir(dir string) bool {
	_, _ = DeleteImages(dir)
	return os.Remove(dir) == nil
}
