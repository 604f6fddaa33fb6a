package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/dressly/tryon/pkg/diag"
	"github.com/dressly/tryon/pkg/models"
	"github.com/dressly/tryon/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const preprocessComponent = "preprocess"

// PreprocessClient fires the best-effort background call that converts a
// captured photo into a reusable server-side artifact. Failures never surface
// to the user; the caller falls back to a full photo upload at submit time.
type PreprocessClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	diagnostic *diag.Log
	tracer     trace.Tracer
}

func NewPreprocessClient(cfg Config, logger *slog.Logger, diagnostic *diag.Log, tracer trace.Tracer) *PreprocessClient {
	return &PreprocessClient{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
		diagnostic: diagnostic,
		tracer:     tracer,
	}
}

type preprocessResponse struct {
	Success  bool   `json:"success"`
	CacheKey string `json:"cache_key"`
}

// Preprocess uploads the photo and returns the cache token issued for it. The
// returned token is tagged with the photo's generation so late responses for
// an abandoned photo can be dropped by the caller.
func (c *PreprocessClient) Preprocess(ctx context.Context, photo models.CapturedPhoto, clothType models.ClothType) (models.PreprocessToken, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PreprocessTimeout)
	defer cancel()

	endpoint := c.cfg.endpoint("/api/preprocess-person")

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "preprocess",
		attribute.String(otelhelper.PhotoGenerationKey, photo.Generation),
		attribute.String(otelhelper.ClothTypeKey, string(clothType)),
		attribute.String(otelhelper.EndpointKey, endpoint),
	)
	defer span.End()

	body, contentType, err := buildForm(func(w *multipart.Writer) error {
		if err := writeFilePart(w, "person_image", photo.URI, photo.MimeType); err != nil {
			return err
		}

		return w.WriteField("cloth_type", string(clothType))
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return models.PreprocessToken{}, fmt.Errorf("failed to build preprocess form: %w", err)
	}

	c.diagnostic.Appendf(preprocessComponent, "uploading photo %s to %s", photo.Generation, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		otelhelper.SetError(span, err)

		return models.PreprocessToken{}, err
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		otelhelper.SetError(span, err)
		c.diagnostic.Appendf(preprocessComponent, "call failed: %v", err)

		return models.PreprocessToken{}, fmt.Errorf("preprocess call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		otelhelper.SetError(span, err)

		return models.PreprocessToken{}, fmt.Errorf("failed to read preprocess response: %w", err)
	}

	c.diagnostic.Appendf(preprocessComponent, "response status %d", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("preprocess returned HTTP %d", resp.StatusCode)
		otelhelper.SetError(span, err)

		return models.PreprocessToken{}, err
	}

	var decoded preprocessResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		otelhelper.SetError(span, err)

		return models.PreprocessToken{}, fmt.Errorf("failed to decode preprocess response: %w", err)
	}

	if !decoded.Success || decoded.CacheKey == "" {
		err := fmt.Errorf("preprocess response carried no cache key")
		otelhelper.SetError(span, err)

		return models.PreprocessToken{}, err
	}

	c.logger.DebugContext(ctx, "preprocess succeeded", "generation", photo.Generation)
	c.diagnostic.Appendf(preprocessComponent, "cache key issued for photo %s", photo.Generation)

	return models.PreprocessToken{
		Key:             decoded.CacheKey,
		PhotoGeneration: photo.Generation,
	}, nil
}
