// Package fetch downloads formula archives into a content-addressed cache.
package fetch

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/formulary/internal/checksum"
	"github.com/blackwell-systems/formulary/internal/formula"
)

const requestTimeout = 10 * time.Minute

// HTTPError is returned when the server answers with a non-2xx status.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Fetcher downloads archives and keeps verified copies under CacheDir.
type Fetcher struct {
	Client   *http.Client
	CacheDir string
	Logger   *zap.Logger

	// Progress receives a byte progress bar per download when non-nil.
	Progress io.Writer
}

// New returns a Fetcher caching under cacheDir.
func New(cacheDir string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		Client:   newSecureClient(),
		CacheDir: cacheDir,
		Logger:   logger.Named("fetch"),
	}
}

func newSecureClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,
	}
	transport.ForceAttemptHTTP2 = true
	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}
}

// CachePath returns where the archive of f is stored once verified.
func (fe *Fetcher) CachePath(f *formula.Formula) string {
	return filepath.Join(fe.CacheDir, "downloads", strings.ToLower(f.SHA256)+"--"+archiveBase(f.URL))
}

func archiveBase(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

// Fetch returns the path of a verified copy of the archive of f,
// downloading it if the cache does not already hold one.
func (fe *Fetcher) Fetch(ctx context.Context, f *formula.Formula) (string, error) {
	dest := fe.CachePath(f)
	log := fe.Logger.With(zap.String("formula", f.Name), zap.String("url", f.URL))

	if _, err := os.Stat(dest); err == nil {
		err := checksum.Verify(dest, f.SHA256)
		if err == nil {
			log.Debug("cache hit", zap.String("path", dest))
			return dest, nil
		}
		log.Warn("cached archive is corrupt, fetching again", zap.Error(err))
		if err := os.Remove(dest); err != nil {
			return "", fmt.Errorf("failed to remove corrupt cache entry: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	start := time.Now()
	actual, size, err := fe.download(ctx, f.URL, tmp)
	if err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := checksum.Compare(f.URL, f.SHA256, actual); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("failed to move download into cache: %w", err)
	}
	committed = true

	log.Info("downloaded",
		zap.String("path", dest),
		zap.Int64("bytes", size),
		zap.Duration("elapsed", time.Since(start)))
	return dest, nil
}

// Digest downloads rawURL without touching the cache and returns the
// SHA-256 of its content.
func (fe *Fetcher) Digest(ctx context.Context, rawURL string) (string, error) {
	sum, _, err := fe.download(ctx, rawURL, io.Discard)
	return sum, err
}

// Save downloads rawURL to dest without verification. It is used for
// small companion files such as detached signatures.
func (fe *Fetcher) Save(ctx context.Context, rawURL, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, _, err := fe.download(ctx, rawURL, out); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}

// FetchAll fetches formulae concurrently, at most workers at a time. The
// returned paths are in input order. The first failure cancels the rest.
func (fe *Fetcher) FetchAll(ctx context.Context, formulae []*formula.Formula, workers int) ([]string, error) {
	if workers < 1 {
		workers = 1
	}
	paths := make([]string, len(formulae))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range formulae {
		i, f := i, f
		g.Go(func() error {
			p, err := fe.Fetch(ctx, f)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// download streams rawURL into w and returns the hex digest and byte count.
func (fe *Fetcher) download(ctx context.Context, rawURL string, w io.Writer) (string, int64, error) {
	body, length, err := fe.open(ctx, rawURL)
	if err != nil {
		return "", 0, err
	}
	defer body.Close()

	h := sha256.New()
	writers := []io.Writer{w, h}
	if fe.Progress != nil {
		bar := progressbar.NewOptions64(length,
			progressbar.OptionSetWriter(fe.Progress),
			progressbar.OptionSetDescription(archiveBase(rawURL)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(fe.Progress) }),
		)
		defer bar.Finish()
		writers = append(writers, bar)
	}

	n, err := io.Copy(io.MultiWriter(writers...), body)
	if err != nil {
		return "", n, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// open returns the content of rawURL and its length, or -1 if unknown.
func (fe *Fetcher) open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	if u.Scheme == "file" {
		file, err := os.Open(u.Path)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to open %s: %w", u.Path, err)
		}
		length := int64(-1)
		if info, err := file.Stat(); err == nil {
			length = info.Size()
		}
		return file, length, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "formulary")

	fe.Logger.Debug("GET", zap.String("url", rawURL))
	resp, err := fe.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, &HTTPError{URL: rawURL, Status: resp.StatusCode}
	}
	return resp.Body, resp.ContentLength, nil
}
