package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dressly/tryon/pkg/diag"
	"github.com/dressly/tryon/pkg/models"
	"github.com/dressly/tryon/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tryonComponent = "tryon"

// TryOnClient executes the primary inference request. The whole call is
// governed by one end-to-end timeout; exceeding it hard-cancels the in-flight
// transfer.
type TryOnClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	diagnostic *diag.Log
	tracer     trace.Tracer
}

func NewTryOnClient(cfg Config, logger *slog.Logger, diagnostic *diag.Log, tracer trace.Tracer) *TryOnClient {
	return &TryOnClient{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
		diagnostic: diagnostic,
		tracer:     tracer,
	}
}

type tryOnResponse struct {
	ImageBase64 string `json:"imageBase64"`
}

// Submit performs the try-on call. The payload carries either a cache token
// or the photo file, never both; the token path avoids re-uploading the large
// original photo. Failures come back as ClassifiedError.
func (c *TryOnClient) Submit(ctx context.Context, payload models.SubmitPayload) (models.TryOnResult, error) {
	// A payload failing validation is a programming error upstream, not a
	// user-reachable condition; it stays unclassified.
	if err := payload.Validate(); err != nil {
		return models.TryOnResult{}, err
	}

	shape := "person_image"
	if payload.UsesToken() {
		shape = "cache_key"
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	defer cancel()

	endpoint := c.cfg.endpoint("/api/try-on")

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "tryon.submit",
		attribute.String(otelhelper.ClothTypeKey, string(payload.ClothType)),
		attribute.String(otelhelper.PayloadShapeKey, shape),
		attribute.String(otelhelper.EndpointKey, endpoint),
	)
	defer span.End()

	// Advisory only: the probe outcome enriches diagnostics but never gates
	// the main submission.
	c.probeForDiagnostics(ctx)

	body, contentType, err := buildForm(func(w *multipart.Writer) error {
		if payload.UsesToken() {
			if err := w.WriteField("cache_key", payload.Token.Key); err != nil {
				return err
			}
		} else {
			if err := writeFilePart(w, "person_image", payload.Photo.URI, payload.Photo.MimeType); err != nil {
				return err
			}
		}

		if err := writeFilePart(w, "cloth_image", payload.Garment.Path, payload.Garment.MimeType); err != nil {
			return err
		}

		return w.WriteField("cloth_type", string(payload.ClothType))
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return models.TryOnResult{}, models.Classify(models.KindAssetLoad, err)
	}

	c.diagnostic.Appendf(tryonComponent, "submitting to %s with %s payload", endpoint, shape)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		otelhelper.SetError(span, err)

		return models.TryOnResult{}, models.Classify(models.KindNetworkUnreachable, err)
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := classifyTransport(ctx, err)
		otelhelper.SetError(span, classified)
		c.diagnostic.Appendf(tryonComponent, "transport failure: %s", classified.Kind)

		return models.TryOnResult{}, classified
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		classified := classifyTransport(ctx, err)
		otelhelper.SetError(span, classified)

		return models.TryOnResult{}, classified
	}

	c.diagnostic.Appendf(tryonComponent, "response status %d (%d bytes)", resp.StatusCode, len(raw))

	if resp.StatusCode != http.StatusOK {
		classified := classifyRejection(resp.StatusCode, raw)
		otelhelper.SetError(span, classified)
		c.diagnostic.Appendf(tryonComponent, "rejected: %s", classified.Detail)

		return models.TryOnResult{}, classified
	}

	var decoded tryOnResponse
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded.ImageBase64 == "" {
		classified := models.NewClassified(models.KindMalformedResponse,
			"try-on response is missing the result payload")
		otelhelper.SetError(span, classified)
		c.diagnostic.Append(tryonComponent, "response missing imageBase64")

		return models.TryOnResult{}, classified
	}

	image, err := base64.StdEncoding.DecodeString(decoded.ImageBase64)
	if err != nil {
		classified := models.NewClassified(models.KindMalformedResponse,
			"try-on result payload is not valid base64")
		otelhelper.SetError(span, classified)

		return models.TryOnResult{}, classified
	}

	c.logger.InfoContext(ctx, "try-on succeeded", "bytes", len(image))
	c.diagnostic.Appendf(tryonComponent, "result decoded (%d bytes)", len(image))

	return models.TryOnResult{
		Image:      image,
		MimeType:   http.DetectContentType(image),
		ReceivedAt: time.Now(),
	}, nil
}

func (c *TryOnClient) probeForDiagnostics(ctx context.Context) {
	status, err := Probe(ctx, c.cfg, c.httpClient)
	if err != nil {
		c.diagnostic.Appendf(tryonComponent, "health probe failed: %v", err)

		return
	}

	c.diagnostic.Appendf(tryonComponent, "health probe: %s", status)
}
