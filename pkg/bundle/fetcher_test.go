package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/pkg/config"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func tarGzBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

var identityFiles = map[string]string{
	"ca.crt":      "CA",
	"config.yaml": "pki: {}\n",
	"host.crt":    "CERT",
	"host.key":    "KEY",
}

type recorder struct {
	sleeps []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return nil
}

func testFetcher(t *testing.T, releaseURL string) (*Fetcher, config.Config, *recorder) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.IdentityDir = filepath.Join(root, "nebula")
	cfg.AgentDir = filepath.Join(root, "bin")
	cfg.ReleaseURL = releaseURL
	cfg.AgentVersion = "v1.6.1"
	cfg.RetryDelay = 7 * time.Second
	rec := &recorder{}
	f := NewFetcher(cfg, nil).WithPlatform("linux", "amd64").WithSleep(rec.sleep)
	f.release.RetryMax = 0
	return f, cfg, rec
}

func TestFetchAndInstall_InvalidURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	f, cfg, rec := testFetcher(t, srv.URL)
	for _, raw := range []string{"", "not a url", "ftp://example.com/x.zip", "http://", "/relative/path"} {
		err := f.FetchAndInstall(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidInviteURL, raw)
	}
	assert.Zero(t, hits.Load())
	assert.Empty(t, rec.sleeps)
	_, err := os.Stat(cfg.IdentityDir)
	assert.True(t, os.IsNotExist(err), "identity dir must not be created")
}

func TestFetchAndInstall_RetriesUnavailableBundle(t *testing.T) {
	release := tarGzBytes(t, map[string]string{"nebula": "agent", "nebula-cert": "tool", "README.md": "skip"})
	var releaseHits atomic.Int32
	releaseSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		releaseHits.Add(1)
		assert.Equal(t, "/v1.6.1/nebula-linux-amd64.tar.gz", r.URL.Path)
		_, _ = w.Write(release)
	}))
	defer releaseSrv.Close()

	bundle := zipBytes(t, identityFiles)
	var bundleHits atomic.Int32
	bundleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bundleHits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(bundle)
	}))
	defer bundleSrv.Close()

	f, cfg, rec := testFetcher(t, releaseSrv.URL)
	require.NoError(t, f.FetchAndInstall(context.Background(), bundleSrv.URL+"/join/abc.zip"))

	assert.Equal(t, []time.Duration{7 * time.Second}, rec.sleeps)
	assert.EqualValues(t, 2, bundleHits.Load())
	assert.EqualValues(t, 1, releaseHits.Load())

	for name, body := range identityFiles {
		got, err := os.ReadFile(filepath.Join(cfg.IdentityDir, name))
		require.NoError(t, err)
		assert.Equal(t, body, string(got))
	}
	info, err := os.Stat(cfg.AgentPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.FileExists(t, cfg.CertToolPath())
	assert.NoFileExists(t, filepath.Join(cfg.AgentDir, "README.md"))
}

func TestFetchAndInstall_ClientErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, _, rec := testFetcher(t, srv.URL)
	err := f.FetchAndInstall(context.Background(), srv.URL+"/join/gone.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Empty(t, rec.sleeps)
}

func TestFetchAndInstall_UnsupportedPlatform(t *testing.T) {
	var releaseHits atomic.Int32
	releaseSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		releaseHits.Add(1)
	}))
	defer releaseSrv.Close()
	bundleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes(t, identityFiles))
	}))
	defer bundleSrv.Close()

	f, cfg, _ := testFetcher(t, releaseSrv.URL)
	f.WithPlatform("windows", "amd64")
	err := f.FetchAndInstall(context.Background(), bundleSrv.URL)

	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.FileExists(t, cfg.CAPath(), "identity still unpacked")
	assert.Zero(t, releaseHits.Load())
}

func TestFetchAndInstall_SkipsInstalledAgent(t *testing.T) {
	var releaseHits atomic.Int32
	releaseSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		releaseHits.Add(1)
	}))
	defer releaseSrv.Close()
	bundleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes(t, identityFiles))
	}))
	defer bundleSrv.Close()

	f, cfg, _ := testFetcher(t, releaseSrv.URL)
	require.NoError(t, os.MkdirAll(cfg.AgentDir, 0o755))
	require.NoError(t, os.WriteFile(cfg.AgentPath(), []byte("x"), 0o755))
	require.NoError(t, os.WriteFile(cfg.CertToolPath(), []byte("x"), 0o755))

	require.NoError(t, f.FetchAndInstall(context.Background(), bundleSrv.URL))
	assert.Zero(t, releaseHits.Load())
}

func TestFetchAndInstall_IdentityModes(t *testing.T) {
	bundleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes(t, identityFiles))
	}))
	defer bundleSrv.Close()

	f, cfg, _ := testFetcher(t, "http://127.0.0.1:1")
	require.NoError(t, os.MkdirAll(cfg.AgentDir, 0o755))
	require.NoError(t, os.WriteFile(cfg.AgentPath(), []byte("x"), 0o755))
	require.NoError(t, os.WriteFile(cfg.CertToolPath(), []byte("x"), 0o755))

	require.NoError(t, f.FetchAndInstall(context.Background(), bundleSrv.URL))

	for name, want := range map[string]os.FileMode{
		"ca.crt":      0o644,
		"host.crt":    0o644,
		"config.yaml": 0o644,
		"host.key":    0o600,
	} {
		info, err := os.Stat(filepath.Join(cfg.IdentityDir, name))
		require.NoError(t, err, name)
		assert.Equal(t, want, info.Mode().Perm(), name)
	}
}

func TestRedactInviteURL(t *testing.T) {
	assert.Equal(t, "https://lc.example.com/…", RedactInviteURL("https://lc.example.com/join/abc123.zip"))
	assert.Equal(t, "http://10.0.0.1:8080/…", RedactInviteURL(" http://10.0.0.1:8080/?t=secret "))
	assert.Equal(t, "https://lc.example.com", RedactInviteURL("https://lc.example.com"))
	assert.Equal(t, "<invalid invitation URL>", RedactInviteURL("/join/abc123.zip"))
}

func TestInstallBundle_TransportErrorOmitsPath(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	raw := srv.URL + "/join/abc123-secret.zip"
	srv.Close()

	f, _, _ := testFetcher(t, "http://127.0.0.1:1")
	u, err := ValidateInviteURL(raw)
	require.NoError(t, err)

	err = f.installBundle(context.Background(), u)
	var te *transientError
	require.ErrorAs(t, err, &te)
	assert.NotContains(t, err.Error(), "abc123-secret")
}

func TestIdentityMode(t *testing.T) {
	assert.Equal(t, os.FileMode(0o600), identityMode("host.key"))
	assert.Equal(t, os.FileMode(0o600), identityMode(filepath.Join("keys", "HOST.KEY")))
	assert.Equal(t, os.FileMode(0o644), identityMode("host.crt"))
	assert.Equal(t, os.FileMode(0o644), identityMode("config.yaml"))
}

func TestFetchAndInstall_DarwinZipRelease(t *testing.T) {
	releaseSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.6.1/nebula-darwin.zip", r.URL.Path)
		_, _ = w.Write(zipBytes(t, map[string]string{"nebula": "a", "nebula-cert": "b"}))
	}))
	defer releaseSrv.Close()
	bundleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(tarGzBytes(t, identityFiles))
	}))
	defer bundleSrv.Close()

	f, cfg, _ := testFetcher(t, releaseSrv.URL)
	f.WithPlatform("darwin", "arm64")
	require.NoError(t, f.FetchAndInstall(context.Background(), bundleSrv.URL))
	assert.FileExists(t, cfg.MeshConfigPath(), "tar.gz bundles are accepted too")
	assert.FileExists(t, cfg.AgentPath())
}

func TestFetchAndInstall_CancelledWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f, _, _ := testFetcher(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	f.WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})
	err := f.FetchAndInstall(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeepTree_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(src, zipBytes(t, map[string]string{"../escape.txt": "x"}), 0o600))

	_, err := unpack(src, FormatZip, keepTree(filepath.Join(dir, "out"), identityMode))
	assert.ErrorIs(t, err, ErrUnsafePath)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestReleaseAsset(t *testing.T) {
	cases := []struct {
		goos, goarch string
		want         Asset
	}{
		{"linux", "amd64", Asset{"nebula-linux-amd64.tar.gz", FormatTarGz}},
		{"linux", "arm", Asset{"nebula-linux-arm-7.tar.gz", FormatTarGz}},
		{"freebsd", "amd64", Asset{"nebula-freebsd-amd64.tar.gz", FormatTarGz}},
		{"darwin", "amd64", Asset{"nebula-darwin.zip", FormatZip}},
	}
	for _, tc := range cases {
		got, err := releaseAsset(tc.goos, tc.goarch)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	_, err := releaseAsset("windows", "amd64")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}
