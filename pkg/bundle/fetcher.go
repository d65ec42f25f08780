// Package bundle downloads a join bundle into the identity directory and
// installs the VPN agent release for this platform.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"

	"localcloud/pkg/config"
)

// ErrInvalidInviteURL is returned for invitation URLs that cannot be fetched.
var ErrInvalidInviteURL = errors.New("invalid invitation URL")

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher installs join bundles and agent releases.
type Fetcher struct {
	identityDir  string
	agentDir     string
	agentPath    string
	certToolPath string
	agentVersion string
	releaseURL   string
	retryDelay   time.Duration

	client  *http.Client
	release *retryablehttp.Client
	goos    string
	goarch  string
	sleep   SleepFunc
	logger  hclog.Logger
}

// NewFetcher builds a Fetcher for the host platform.
func NewFetcher(cfg config.Config, logger hclog.Logger) *Fetcher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = logger.Named("release")
	rc.HTTPClient.Timeout = 5 * time.Minute

	return &Fetcher{
		identityDir:  cfg.IdentityDir,
		agentDir:     cfg.AgentDir,
		agentPath:    cfg.AgentPath(),
		certToolPath: cfg.CertToolPath(),
		agentVersion: cfg.AgentVersion,
		releaseURL:   strings.TrimSuffix(cfg.ReleaseURL, "/"),
		retryDelay:   cfg.RetryDelay,
		client:       &http.Client{Timeout: 60 * time.Second},
		release:      rc,
		goos:         runtime.GOOS,
		goarch:       runtime.GOARCH,
		sleep:        sleepCtx,
		logger:       logger.Named("bundle"),
	}
}

// WithPlatform overrides the detected OS and architecture.
func (f *Fetcher) WithPlatform(goos, goarch string) *Fetcher {
	f.goos, f.goarch = goos, goarch
	return f
}

// WithSleep replaces the wait between bundle download attempts.
func (f *Fetcher) WithSleep(fn SleepFunc) *Fetcher {
	f.sleep = fn
	return f
}

// ValidateInviteURL accepts absolute http(s) URLs with a host.
func ValidateInviteURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidInviteURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInviteURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidInviteURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidInviteURL)
	}
	return u, nil
}

// RedactInviteURL reduces an invitation URL to scheme and host. The path
// and query grant access to the bundle and are never logged or stored.
func RedactInviteURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "<invalid invitation URL>"
	}
	out := u.Scheme + "://" + u.Host
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		out += "/…"
	}
	return out
}

// FetchAndInstall downloads the join bundle behind invite into the identity
// directory, then installs the agent release unless it is already present.
// Unreachable bundle servers are retried every retry delay until ctx ends.
func (f *Fetcher) FetchAndInstall(ctx context.Context, invite string) error {
	u, err := ValidateInviteURL(invite)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err := f.installBundle(ctx, u)
		if err == nil {
			break
		}
		var te *transientError
		if ctx.Err() != nil || !errors.As(err, &te) {
			return err
		}
		f.logger.Warn("join bundle unavailable, retrying", "host", u.Host, "attempt", attempt, "delay", f.retryDelay, "error", err)
		if err := f.sleep(ctx, f.retryDelay); err != nil {
			return fmt.Errorf("waiting for join bundle: %w", err)
		}
	}

	asset, err := releaseAsset(f.goos, f.goarch)
	if err != nil {
		return err
	}
	if fileExists(f.agentPath) && fileExists(f.certToolPath) {
		f.logger.Info("agent already installed", "path", f.agentPath)
		return nil
	}
	return f.installAgent(ctx, asset)
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (f *Fetcher) installBundle(ctx context.Context, u *url.URL) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build bundle request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return &transientError{fmt.Errorf("download join bundle from %s: %w", RedactInviteURL(u.String()), err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &transientError{fmt.Errorf("download join bundle: %s", resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download join bundle: %s", resp.Status)
	}

	tmp, err := os.CreateTemp("", "localcloud-bundle-*")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return &transientError{fmt.Errorf("download join bundle: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write temp bundle: %w", err)
	}

	format, err := DetectFormat(tmp.Name())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.identityDir, 0o755); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	files, err := unpack(tmp.Name(), format, keepTree(f.identityDir, identityMode))
	if err != nil {
		return fmt.Errorf("unpack join bundle: %w", err)
	}
	f.logger.Info("join bundle installed", "dir", f.identityDir, "files", len(files))
	return nil
}

func (f *Fetcher) installAgent(ctx context.Context, asset Asset) error {
	src := fmt.Sprintf("%s/%s/%s", f.releaseURL, f.agentVersion, asset.Name)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("build release request: %w", err)
	}
	resp, err := f.release.Do(req)
	if err != nil {
		return fmt.Errorf("download agent release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download agent release %s: %s", asset.Name, resp.Status)
	}

	tmp, err := os.CreateTemp("", "localcloud-release-*")
	if err != nil {
		return fmt.Errorf("create temp release: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("download agent release: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write temp release: %w", err)
	}

	names := []string{filepath.Base(f.agentPath), filepath.Base(f.certToolPath)}
	files, err := unpack(tmp.Name(), asset.Format, onlyNamed(f.agentDir, 0o755, names...))
	if err != nil {
		return fmt.Errorf("unpack agent release: %w", err)
	}
	if !fileExists(f.agentPath) {
		return fmt.Errorf("agent release %s has no %s binary", asset.Name, names[0])
	}
	f.logger.Info("agent installed", "version", f.agentVersion, "asset", asset.Name, "files", files)
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
