package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMerged_NoProfile(t *testing.T) {
	store := &Store{Root: t.TempDir()}

	cfg, used, err := LoadMerged(store, Options{Output: "out", ChapterWorkers: 4})
	require.NoError(t, err)

	assert.Contains(t, used, "default config")
	assert.Equal(t, "out", cfg.Output)
	assert.Equal(t, 4, cfg.ChapterWorkers)
	assert.Equal(t, 10, cfg.ImageWorkers)
	assert.True(t, cfg.Headless)
}

func TestLoadMerged_ProfileAndFlags(t *testing.T) {
	store := &Store{Root: t.TempDir()}
	_, err := store.InitDefault()
	require.NoError(t, err)

	yml := "image_workers: 4\nimage_retry_delay: 750ms\nconvert_pdf: true\ndelete_after_pdf: true\n"
	require.NoError(t, os.WriteFile(store.Path(DefaultLabel), []byte(yml), 0644))

	cfg, used, err := LoadMerged(store, Options{Headful: true, ImageWorkers: 6})
	require.NoError(t, err)

	assert.Equal(t, store.Path(DefaultLabel), used)
	assert.Equal(t, 6, cfg.ImageWorkers)
	assert.Equal(t, 750*time.Millisecond, cfg.ImageRetryDelay)
	assert.True(t, cfg.ConvertPDF)
	assert.True(t, cfg.DeleteAfterPDF)
	assert.False(t, cfg.Headless)
	// missing keys keep their defaults
	assert.Equal(t, 10, cfg.ChapterWorkers)
	assert.Equal(t, 95, cfg.PDFQuality)
	assert.Equal(t, "https://comick.io", cfg.BaseURL)
}

func TestLoadMerged_IgnoreConfig(t *testing.T) {
	store := &Store{Root: t.TempDir()}
	_, err := store.InitDefault()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(DefaultLabel), []byte("image_workers: 1\n"), 0644))

	cfg, used, err := LoadMerged(store, Options{IgnoreConfig: true})
	require.NoError(t, err)
	assert.Equal(t, "(ignored config)", used)
	assert.Equal(t, 10, cfg.ImageWorkers)
}

func TestLoadMerged_BrokenYAML(t *testing.T) {
	store := &Store{Root: t.TempDir()}
	_, err := store.InitDefault()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(DefaultLabel), []byte("image_workers: [\n"), 0644))

	_, _, err = LoadMerged(store, Options{})
	assert.Error(t, err)
}

func TestNormalizeDefaults(t *testing.T) {
	c := &Config{DeleteAfterPDF: true, PDFQuality: 300}
	normalizeDefaults(c)

	assert.False(t, c.DeleteAfterPDF)
	assert.Equal(t, 95, c.PDFQuality)
	assert.Equal(t, 3, c.ImageRetries)
	assert.Equal(t, "meo.comick.pictures", c.CDNHost)
}

func TestStore(t *testing.T) {
	store := &Store{Root: t.TempDir()}

	_, err := store.CurrentLabel()
	assert.ErrorIs(t, err, ErrNoConfig)

	path, err := store.InitDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root, "configs", "Default.yaml"), path)

	_, err = store.InitDefault()
	assert.ErrorIs(t, err, os.ErrExist)

	_, err = store.Create("fast")
	require.NoError(t, err)
	_, err = store.Create("fast")
	assert.Error(t, err)

	require.NoError(t, store.Switch("fast"))
	assert.Error(t, store.Switch("missing"))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Default", list[0].Label)
	assert.True(t, list[1].Active)

	require.NoError(t, store.Remove("fast"))
	label, err := store.CurrentLabel()
	require.NoError(t, err)
	assert.Equal(t, DefaultLabel, label)

	assert.Error(t, store.Remove(DefaultLabel))
	assert.Error(t, store.Remove("missing"))
}

func TestStore_Reset(t *testing.T) {
	store := &Store{Root: t.TempDir()}

	_, err := store.Reset()
	assert.ErrorIs(t, err, ErrNoConfig)

	_, err = store.Create("tuned")
	require.NoError(t, err)
	require.NoError(t, store.Switch("tuned"))
	require.NoError(t, os.WriteFile(store.Path("tuned"), []byte("image_workers: 2\nheadless: false\n"), 0644))

	path, err := store.Reset()
	require.NoError(t, err)
	assert.Equal(t, store.Path("tuned"), path)

	cfg, _, err := LoadMerged(store, Options{})
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ImageWorkers)
	assert.True(t, cfg.Headless)

	// a deleted active profile comes back
	require.NoError(t, os.Remove(path))
	_, err = store.Reset()
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	c := DefaultConfig()
	c.ConvertPDF = true
	c.Print(&buf)

	assert.Contains(t, buf.String(), " -image_workers: 10")
	assert.Contains(t, buf.String(), " -convert_pdf: true (quality 95)")
}
