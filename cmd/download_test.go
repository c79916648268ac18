package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/brogergvhs/comickd/internal/browser/browsertest"
	"github.com/brogergvhs/comickd/internal/config"
	"github.com/brogergvhs/comickd/internal/session"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	soloComic    = "https://comick.io/comic/solo"
	soloListing  = "https://comick.io/comic/solo?page=1"
	soloChapter1 = "https://comick.io/comic/solo/a1-chapter-1-en"
)

// soloSite serves a two chapter listing. Chapter 1 has one good and one
// missing image on cdn; chapter 2 never loads.
func soloSite(cdn string) map[string]string {
	return map[string]string{
		soloListing: `<html><body><table><tbody>` +
			`<tr class="group"><td><a href="/comic/solo/a1-chapter-1-en"><span title="Chapter 1">Chapter 1</span></a></td></tr>` +
			`<tr class="group"><td><a href="/comic/solo/b2-chapter-2-en"><span title="Chapter 2">Chapter 2</span></a></td></tr>` +
			`</tbody></table></body></html>`,
		soloChapter1: fmt.Sprintf(
			`<html><body><img src="%s/p1.jpg"><img src="%s/p2.jpg"><img src="/static/logo.png"></body></html>`,
			cdn, cdn,
		),
	}
}

func newTestApp(t *testing.T, cdn string) (*app, *bytes.Buffer) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Output = t.TempDir()
	cfg.CDNHost = "127.0.0.1"
	cfg.NavigationRetryDelay = 0
	cfg.ListSettleDelay = 0
	cfg.ImageSettleDelay = 0
	cfg.ImageRetryDelay = 0

	site := soloSite(cdn)
	log, _ := test.NewNullLogger()
	out := &bytes.Buffer{}

	return &app{
		cfg: cfg,
		log: log,
		sessions: session.Static{
			UserAgent: "comickd-test",
			Cookies:   map[string]string{"cf_clearance": "tok"},
		},
		launcher: &browsertest.Launcher{NewPage: func() *browsertest.Page {
			return &browsertest.Page{Responses: site}
		}},
		out: out,
	}, out
}

func TestDownload_PartialFailureStillSucceeds(t *testing.T) {
	var gotCookie, gotUA atomic.Value
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie.Store(r.Header.Get("Cookie"))
		gotUA.Store(r.Header.Get("User-Agent"))
		if r.URL.Path != "/p1.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer cdn.Close()

	a, out := newTestApp(t, cdn.URL)

	err := a.download(context.Background(), downloadRequest{URL: soloComic, Selection: "all"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Chapters: 1/2 completed (0 failed, 1 without images)")
	assert.Contains(t, out.String(), "Images:   1 saved, 0 skipped, 1 failed")

	saved, _ := filepath.Glob(filepath.Join(a.cfg.Output, "*", "001.jpg"))
	assert.Len(t, saved, 1)
	missing, _ := filepath.Glob(filepath.Join(a.cfg.Output, "*", "002.jpg"))
	assert.Empty(t, missing)

	assert.Equal(t, "cf_clearance=tok", gotCookie.Load())
	assert.Equal(t, "comickd-test", gotUA.Load())
}

func TestDownload_DryRun(t *testing.T) {
	var hits atomic.Int32
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer cdn.Close()

	a, out := newTestApp(t, cdn.URL)

	err := a.download(context.Background(), downloadRequest{URL: soloComic, Selection: "2", DryRun: true})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Dry-run: 1 chapters selected")
	assert.Contains(t, out.String(), "Ch.2")
	assert.NotContains(t, out.String(), "Ch.1 ")
	assert.Zero(t, hits.Load())
}

func TestDownload_BadSelection(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:1")

	err := a.download(context.Background(), downloadRequest{URL: soloComic, Selection: "3-1"})
	assert.Error(t, err)
}
