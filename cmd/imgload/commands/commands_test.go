package commands

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	body := pngBytes(t)
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "imgload.yaml")
	body := `
store:
  kind: fs
  framed: true
  fs:
    dir: "` + filepath.ToSlash(filepath.Join(dir, "store")) + `"
logging:
  backend: none
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestWarmThenInspect(t *testing.T) {
	srv, hits := imageServer(t)
	cfg := writeConfig(t)
	url := srv.URL + "/a.png"

	out, err := run(t, "--config", cfg, "warm", url, url)
	require.NoError(t, err)
	assert.Contains(t, out, "network")
	assert.EqualValues(t, 1, hits.Load(), "duplicate locators share one fetch")

	out, err = run(t, "--config", cfg, "inspect", url)
	require.NoError(t, err)
	assert.Contains(t, out, "image/png")

	out, err = run(t, "--config", cfg, "warm", url)
	require.NoError(t, err)
	assert.Contains(t, out, "store")
	assert.EqualValues(t, 1, hits.Load())
}

func TestWarmReportsFailures(t *testing.T) {
	srv, _ := imageServer(t)
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "warm", srv.URL+"/ok.png", srv.URL+"/missing.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, out, "status 404")
}

func TestWarmReadsFile(t *testing.T) {
	srv, hits := imageServer(t)
	cfg := writeConfig(t)
	list := filepath.Join(t.TempDir(), "urls.txt")
	body := "# images\n" + srv.URL + "/1.png\n\n" + srv.URL + "/2.png\n"
	require.NoError(t, os.WriteFile(list, []byte(body), 0o600))

	_, err := run(t, "--config", cfg, "warm", "-f", list)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestWarmNeedsLocators(t *testing.T) {
	_, err := run(t, "warm")
	require.Error(t, err)
}

func TestInspectMissing(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, "--config", cfg, "inspect", "http://example.invalid/none.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not stored")
}
