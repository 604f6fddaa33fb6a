// Package assets resolves garment references into locally addressable files
// ready for multipart upload. Remote sources are downloaded with bounded
// retry; bundled sources are materialized from the embedded catalog bundle.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dressly/tryon/pkg/diag"
	"github.com/dressly/tryon/pkg/models"
)

const component = "assets"

// downloadMaxElapsed bounds the total time spent retrying one download.
const downloadMaxElapsed = 15 * time.Second

// Resolver turns garment references into resolved local files. Results are
// cached per reference for the process lifetime; correctness never depends on
// that cache.
type Resolver struct {
	httpClient *http.Client
	bundle     fs.FS
	cacheDir   string
	logger     *slog.Logger
	diagnostic *diag.Log

	mu    sync.Mutex
	cache map[string]models.ResolvedGarment
}

// NewResolver creates a resolver writing into cacheDir. An empty cacheDir
// falls back to a per-user cache directory.
func NewResolver(bundle fs.FS, cacheDir string, logger *slog.Logger, diagnostic *diag.Log) (*Resolver, error) {
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine cache dir: %w", err)
		}

		cacheDir = filepath.Join(base, "tryon", "garments")
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	return &Resolver{
		httpClient: &http.Client{Timeout: downloadMaxElapsed},
		bundle:     bundle,
		cacheDir:   cacheDir,
		logger:     logger,
		diagnostic: diagnostic,
		cache:      make(map[string]models.ResolvedGarment),
	}, nil
}

// Resolve converts ref into a local uploadable resource. Failures are
// classified as download, asset_load or invalid_reference.
func (r *Resolver) Resolve(ctx context.Context, ref models.GarmentReference) (models.ResolvedGarment, error) {
	key := cacheKey(ref)

	r.mu.Lock()
	if resolved, ok := r.cache[key]; ok {
		r.mu.Unlock()
		r.diagnostic.Appendf(component, "garment %s served from resolver cache", ref.ID)

		return resolved, nil
	}
	r.mu.Unlock()

	var (
		resolved models.ResolvedGarment
		err      error
	)

	switch ref.Source.Kind {
	case models.SourceRemote:
		resolved, err = r.download(ctx, ref)
	case models.SourceBundled:
		resolved, err = r.materialize(ref)
	default:
		err = models.NewClassified(models.KindInvalidReference,
			"garment %s has unknown source kind %q", ref.ID, ref.Source.Kind)
	}

	if err != nil {
		r.diagnostic.Appendf(component, "garment %s resolution failed: %v", ref.ID, err)

		return models.ResolvedGarment{}, err
	}

	// A resolved-but-empty handle is equivalent to total resolution failure,
	// never a silent empty upload.
	if err := validateResolved(resolved); err != nil {
		r.diagnostic.Appendf(component, "garment %s resolved to unusable file: %v", ref.ID, err)

		return models.ResolvedGarment{}, err
	}

	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()

	r.diagnostic.Appendf(component, "garment %s resolved to %s (%s)", ref.ID, resolved.Path, resolved.MimeType)

	return resolved, nil
}

func (r *Resolver) download(ctx context.Context, ref models.GarmentReference) (models.ResolvedGarment, error) {
	target := filepath.Join(r.cacheDir, downloadFileName(ref.Source.URL))

	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.Source.URL, nil)
		if err != nil {
			return "", backoff.Permanent(err)
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			err := fmt.Errorf("download returned HTTP %d", resp.StatusCode)
			if resp.StatusCode < http.StatusInternalServerError {
				return "", backoff.Permanent(err)
			}

			return "", err
		}

		out, err := os.Create(target)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		defer out.Close()

		if _, err := io.Copy(out, resp.Body); err != nil {
			return "", err
		}

		return target, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(downloadMaxElapsed),
	)
	if err != nil {
		r.logger.WarnContext(ctx, "garment download failed", "garment", ref.ID, "url", ref.Source.URL, "error", err)

		return models.ResolvedGarment{}, models.Classify(models.KindDownload,
			fmt.Errorf("failed to download garment %s: %w", ref.ID, err))
	}

	return models.ResolvedGarment{Path: target, MimeType: mimeFromURL(ref.Source.URL)}, nil
}

func (r *Resolver) materialize(ref models.GarmentReference) (models.ResolvedGarment, error) {
	data, err := fs.ReadFile(r.bundle, ref.Source.Asset)
	if err != nil {
		return models.ResolvedGarment{}, models.Classify(models.KindAssetLoad,
			fmt.Errorf("failed to load bundled asset %q: %w", ref.Source.Asset, err))
	}

	target := filepath.Join(r.cacheDir, "bundled-"+path.Base(ref.Source.Asset))

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return models.ResolvedGarment{}, models.Classify(models.KindAssetLoad,
			fmt.Errorf("failed to materialize bundled asset %q: %w", ref.Source.Asset, err))
	}

	return models.ResolvedGarment{Path: target, MimeType: mimeFromURL(ref.Source.Asset)}, nil
}

func validateResolved(resolved models.ResolvedGarment) error {
	if resolved.Path == "" {
		return models.NewClassified(models.KindInvalidReference, "resolved garment has empty path")
	}

	info, err := os.Stat(resolved.Path)
	if err != nil {
		return models.Classify(models.KindInvalidReference, err)
	}

	if info.Size() == 0 {
		return models.NewClassified(models.KindInvalidReference, "resolved garment file %s is empty", resolved.Path)
	}

	return nil
}

// mimeFromURL infers the mime type from the file extension, defaulting to
// JPEG for anything that is not PNG.
func mimeFromURL(rawURL string) string {
	name := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		name = parsed.Path
	}

	if strings.EqualFold(path.Ext(name), ".png") {
		return "image/png"
	}

	return "image/jpeg"
}

func downloadFileName(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	ext := ".jpg"

	if mimeFromURL(rawURL) == "image/png" {
		ext = ".png"
	}

	return hex.EncodeToString(sum[:8]) + ext
}

func cacheKey(ref models.GarmentReference) string {
	return string(ref.Source.Kind) + "|" + ref.Source.Asset + "|" + ref.Source.URL
}
