// Package hub is a minimal Hugging Face hub client: cached file downloads
// and repo uploads via the commit API.
package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/samcharles93/hippo/internal/logger"
)

const DefaultBaseURL = "https://huggingface.co"

// Client talks to one hub endpoint. The zero value is not usable; construct
// with New.
type Client struct {
	baseURL  string
	token    string
	cacheDir string
	http     *http.Client
	log      logger.Logger
}

// Options configures a Client. Empty fields fall back to defaults.
type Options struct {
	BaseURL  string
	Token    string
	CacheDir string
	Logger   logger.Logger
}

// New builds a hub client. The cache dir is created on first use.
func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	cache := opts.CacheDir
	if cache == "" {
		cache = DefaultCacheDir()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		baseURL:  base,
		token:    opts.Token,
		cacheDir: cache,
		http:     &http.Client{},
		log:      log,
	}
}

// DefaultCacheDir returns the default location for downloaded checkpoints.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".hippo-cache"
	}
	return filepath.Join(dir, "hippo")
}

// Download fetches a file from a hub repository into the cache and returns
// its local path. Already-cached files are returned without network I/O.
// Failures are fatal to the conversion; there are no retries.
func (c *Client) Download(ctx context.Context, repo, filename string) (string, error) {
	dest := filepath.Join(c.cacheDir, strings.ReplaceAll(repo, "/", "--"), filename)
	if _, err := os.Stat(dest); err == nil {
		c.log.Debug("checkpoint already cached", "path", dest)
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/resolve/main/%s", c.baseURL, repo, filename)
	c.log.Info("downloading checkpoint", "repo", repo, "file", filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s/%s: %w", repo, filename, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s/%s: unexpected status %s", repo, filename, resp.Status)
	}

	// Download to a unique temp name first so a failed transfer never leaves
	// a truncated file under the final cache path.
	tmp := dest + ".tmp-" + uuid.NewString()
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("download %s/%s: %w", repo, filename, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return dest, nil
}
