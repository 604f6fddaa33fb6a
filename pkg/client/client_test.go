package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dressly/tryon/pkg/diag"
	"github.com/dressly/tryon/pkg/models"
	"github.com/dressly/tryon/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempImage(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("image-bytes"), 0o644))

	return path
}

func testPhoto(t *testing.T) models.CapturedPhoto {
	t.Helper()

	return models.CapturedPhoto{
		URI:        writeTempImage(t, "person.jpg"),
		MimeType:   "image/jpeg",
		Generation: "gen-1",
	}
}

func testGarment(t *testing.T) models.ResolvedGarment {
	t.Helper()

	return models.ResolvedGarment{
		Path:     writeTempImage(t, "garment.png"),
		MimeType: "image/png",
	}
}

func testConfig(baseURL string) Config {
	cfg := NewConfig(baseURL)
	cfg.SubmitTimeout = 5 * time.Second
	cfg.PreprocessTimeout = 5 * time.Second
	cfg.ProbeTimeout = time.Second

	return cfg
}

// tryOnServer answers /health plus a configurable /api/try-on handler.
func tryOnServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/api/try-on", handler)

	return httptest.NewServer(mux)
}

func TestPreprocessIssuesTokenForPhotoGeneration(t *testing.T) {
	var gotClothType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/preprocess-person", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		_, _, err := r.FormFile("person_image")
		require.NoError(t, err)

		gotClothType = r.FormValue("cloth_type")

		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "cache_key": "cache-123"})
	}))
	defer server.Close()

	preprocess := NewPreprocessClient(testConfig(server.URL), slog.Default(), diag.NewLog(0), otelhelper.NoopTracer())

	token, err := preprocess.Preprocess(context.Background(), testPhoto(t), models.ClothUpper)
	require.NoError(t, err)

	assert.Equal(t, "cache-123", token.Key)
	assert.Equal(t, "gen-1", token.PhotoGeneration)
	assert.Equal(t, "upper", gotClothType)
}

func TestPreprocessFailuresAreErrorsNotPanics(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"no cache key": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		},
	}

	for name, handler := range cases {
		server := httptest.NewServer(handler)

		preprocess := NewPreprocessClient(testConfig(server.URL), slog.Default(), diag.NewLog(0), otelhelper.NoopTracer())

		_, err := preprocess.Preprocess(context.Background(), testPhoto(t), models.ClothUpper)
		assert.Error(t, err, "case %q", name)

		server.Close()
	}
}

func TestSubmitWithTokenSendsCacheKeyOnly(t *testing.T) {
	resultImage := []byte("composed-image")

	server := tryOnServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "cache-123", r.FormValue("cache_key"))
		assert.Equal(t, "upper", r.FormValue("cloth_type"))

		_, _, err := r.FormFile("person_image")
		assert.Error(t, err, "token submissions must not carry a photo file")

		_, _, err = r.FormFile("cloth_image")
		assert.NoError(t, err)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"imageBase64": base64.StdEncoding.EncodeToString(resultImage),
		})
	})
	defer server.Close()

	tryon := NewTryOnClient(testConfig(server.URL), slog.Default(), diag.NewLog(0), otelhelper.NoopTracer())

	result, err := tryon.Submit(context.Background(), models.SubmitPayload{
		Token:     &models.PreprocessToken{Key: "cache-123", PhotoGeneration: "gen-1"},
		Garment:   testGarment(t),
		ClothType: models.ClothUpper,
	})
	require.NoError(t, err)

	assert.Equal(t, resultImage, result.Image)
	assert.False(t, result.ReceivedAt.IsZero())
}

func TestSubmitWithoutTokenSendsPhotoOnly(t *testing.T) {
	server := tryOnServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Empty(t, r.FormValue("cache_key"), "photo submissions must not carry a cache key")

		_, header, err := r.FormFile("person_image")
		require.NoError(t, err)
		assert.Equal(t, "person.jpg", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"imageBase64": base64.StdEncoding.EncodeToString([]byte("img")),
		})
	})
	defer server.Close()

	tryon := NewTryOnClient(testConfig(server.URL), slog.Default(), diag.NewLog(0), otelhelper.NoopTracer())

	photo := testPhoto(t)

	_, err := tryon.Submit(context.Background(), models.SubmitPayload{
		Photo:     &photo,
		Garment:   testGarment(t),
		ClothType: models.ClothUpper,
	})
	require.NoError(t, err)
}

func TestSubmitClassifiesServerRejection(t *testing.T) {
	server := tryOnServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "person not detected"})
	})
	defer server.Close()

	tryon := NewTryOnClient(testConfig(server.URL), slog.Default(), diag.NewLog(0), otelhelper.NoopTracer())

	photo := testPhoto(t)

	_, err := tryon.Submit(context.Background(), models.SubmitPayload{
		Photo:     &photo,
		Garment:   testGarment(t),
		ClothType: models.ClothLower,
	})
	require.Error(t, err)

	classified, ok := models.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, models.KindServerRejected, classified.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, classified.HTTPStatus)
	assert.Equal(t, "person not detected", classified.Detail)
}

func TestSubmitRejectionFallsBackToStatusText(t *testing.T) {
	server := tryOnServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>upstream exploded</html>"))
	})
	defer server.Close()

	tryon := NewTryOnClient(testConfig(server.URL), slog.Default(), diag.NewLog(0), otelhelper.NoopTracer())

	photo := testPhoto(t)

	_, err := tryon.Submit(context.Background(), models.SubmitPayload{
		Photo:     &photo,
		Garment:   testGarment(t),
		ClothType: models.ClothUpper,
	})
	require.Error(t, err)

	classified, ok := models.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, models.KindServerRejected, classified.Kind)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), classified.Detail)
}

func TestSubmitClassifiesMalformedResponse(t *testing.T) {
	cases := map[string]string{
		"missing field": `{"something_else": "x"}`,
		"not base64":    `{"imageBase64": "!!! not base64 !!!"}`,
		"not json":      `plain text`,
	}

	for name, body := range cases {
		server := tryOnServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})

		tryon := NewTryOnClient(testConfig(server.URL), slog.Default(), diag.NewLog(0), otelhelper.NoopTracer())

		photo := testPhoto(t)

		_, err := tryon.Submit(context.Background(), models.SubmitPayload{
			Photo:     &photo,
			Garment:   testGarment(t),
			ClothType: models.ClothUpper,
		})
		require.Error(t, err, "case %q", name)
		assert.True(t, models.IsKind(err, models.KindMalformedResponse), "case %q got %v", name, err)

		server.Close()
	}
}

func TestSubmitTimeoutAbortsTransfer(t *testing.T) {
	done := make(chan struct{})

	server := tryOnServer(t, func(w http.ResponseWriter, r *http.Request) {
		// The request context is only cancelled once the server notices the
		// disconnect, which requires reading from the connection.
		_, _ = io.Copy(io.Discard, r.Body)

		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}

		close(done)
	})
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.SubmitTimeout = 100 * time.Millisecond

	tryon := NewTryOnClient(cfg, slog.Default(), diag.NewLog(0), otelhelper.NoopTracer())

	photo := testPhoto(t)
	started := time.Now()

	_, err := tryon.Submit(context.Background(), models.SubmitPayload{
		Photo:     &photo,
		Garment:   testGarment(t),
		ClothType: models.ClothUpper,
	})
	require.Error(t, err)

	assert.True(t, models.IsKind(err, models.KindTimeout), "got %v", err)
	assert.Less(t, time.Since(started), 2*time.Second, "timeout must abort the transfer, not wait it out")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server handler never observed the abort")
	}
}

func TestSubmitClassifiesUnreachableNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	tryon := NewTryOnClient(testConfig(baseURL), slog.Default(), diag.NewLog(0), otelhelper.NoopTracer())

	photo := testPhoto(t)

	_, err := tryon.Submit(context.Background(), models.SubmitPayload{
		Photo:     &photo,
		Garment:   testGarment(t),
		ClothType: models.ClothUpper,
	})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNetworkUnreachable), "got %v", err)
}

func TestSubmitRecordsMilestonesInDiagnosticLog(t *testing.T) {
	server := tryOnServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"imageBase64": base64.StdEncoding.EncodeToString([]byte("img")),
		})
	})
	defer server.Close()

	diagnostic := diag.NewLog(0)
	tryon := NewTryOnClient(testConfig(server.URL), slog.Default(), diagnostic, otelhelper.NoopTracer())

	photo := testPhoto(t)

	_, err := tryon.Submit(context.Background(), models.SubmitPayload{
		Photo:     &photo,
		Garment:   testGarment(t),
		ClothType: models.ClothUpper,
	})
	require.NoError(t, err)

	export := diagnostic.Export()
	assert.Contains(t, export, "health probe: ready")
	assert.Contains(t, export, "person_image payload")
	assert.Contains(t, export, "response status 200")
	assert.Contains(t, export, "result decoded")
}

func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "loading"})
	}))
	defer server.Close()

	status, err := Probe(context.Background(), testConfig(server.URL), http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, "loading", status)
}

func TestConfigValidation(t *testing.T) {
	assert.NoError(t, testConfig("http://localhost:8890").Validate())
	assert.Error(t, NewConfig("").Validate())
	assert.Error(t, NewConfig("not a url").Validate())

	cfg := NewConfig("http://localhost:8890")
	cfg.SubmitTimeout = 0
	assert.Error(t, cfg.Validate())
}
