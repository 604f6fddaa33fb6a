package assets

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"testing/fstest"

	"github.com/dressly/tryon/pkg/diag"
	"github.com/dressly/tryon/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBundle = fstest.MapFS{
	"tshirt.png": &fstest.MapFile{Data: []byte("png-bytes")},
	"empty.jpg":  &fstest.MapFile{Data: []byte{}},
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()

	resolver, err := NewResolver(testBundle, t.TempDir(), slog.Default(), diag.NewLog(0))
	require.NoError(t, err)

	return resolver
}

func remoteRef(id, url string) models.GarmentReference {
	return models.GarmentReference{
		ID:        id,
		Name:      id,
		ClothType: models.ClothUpper,
		Source:    models.GarmentSource{Kind: models.SourceRemote, URL: url},
	}
}

func bundledRef(id, asset string) models.GarmentReference {
	return models.GarmentReference{
		ID:        id,
		Name:      id,
		ClothType: models.ClothUpper,
		Source:    models.GarmentSource{Kind: models.SourceBundled, Asset: asset},
	}
}

func TestResolveRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("downloaded-image-bytes"))
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	resolved, err := resolver.Resolve(context.Background(), remoteRef("shirt", server.URL+"/images/shirt.png"))
	require.NoError(t, err)

	assert.Equal(t, "image/png", resolved.MimeType)

	data, err := os.ReadFile(resolved.Path)
	require.NoError(t, err)
	assert.Equal(t, "downloaded-image-bytes", string(data))
}

func TestResolveRemoteDefaultsToJPEG(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpg-bytes"))
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	resolved, err := resolver.Resolve(context.Background(), remoteRef("shirt", server.URL+"/images/shirt"))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", resolved.MimeType)
}

func TestResolveRemoteNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), remoteRef("gone", server.URL+"/gone.png"))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindDownload), "404 must classify as download failure, got %v", err)
}

func TestResolveRemoteEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), remoteRef("empty", server.URL+"/empty.png"))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindInvalidReference),
		"an empty download must never become a silent empty upload, got %v", err)
}

func TestResolveBundled(t *testing.T) {
	resolver := newTestResolver(t)

	resolved, err := resolver.Resolve(context.Background(), bundledRef("tshirt", "tshirt.png"))
	require.NoError(t, err)

	assert.Equal(t, "image/png", resolved.MimeType)

	data, err := os.ReadFile(resolved.Path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestResolveBundledMissingAsset(t *testing.T) {
	resolver := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), bundledRef("ghost", "ghost.png"))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAssetLoad))
}

func TestResolveBundledEmptyAsset(t *testing.T) {
	resolver := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), bundledRef("empty", "empty.jpg"))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindInvalidReference))
}

func TestResolveUnknownSourceKind(t *testing.T) {
	resolver := newTestResolver(t)

	ref := models.GarmentReference{
		ID:     "odd",
		Source: models.GarmentSource{Kind: "carrier-pigeon"},
	}

	_, err := resolver.Resolve(context.Background(), ref)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindInvalidReference))
}

func TestResolveCachesPerReference(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++

		_, _ = w.Write([]byte("image"))
	}))
	defer server.Close()

	resolver := newTestResolver(t)
	ref := remoteRef("cached", server.URL+"/cached.png")

	first, err := resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)

	second, err := resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, 1, hits)
}
