package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/dressly/tryon/pkg/models"
	"github.com/moogar0880/problems"
)

// classifyTransport maps a transport-level failure (no response received) to
// either a timeout or an unreachable-network classification.
func classifyTransport(ctx context.Context, err error) *models.ClassifiedError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &models.ClassifiedError{
			Kind:    models.KindTimeout,
			Message: "request exceeded its timeout ceiling and was aborted",
			Err:     err,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &models.ClassifiedError{
			Kind:    models.KindTimeout,
			Message: "request timed out",
			Err:     err,
		}
	}

	return &models.ClassifiedError{
		Kind:    models.KindNetworkUnreachable,
		Message: "could not reach the try-on service",
		Err:     err,
	}
}

// classifyRejection turns a non-success response into a server_rejected
// classification, extracting a structured detail when the body allows it.
func classifyRejection(status int, body []byte) *models.ClassifiedError {
	detail := parseErrorDetail(status, body)

	return &models.ClassifiedError{
		Kind:       models.KindServerRejected,
		Message:    "try-on service rejected the request",
		HTTPStatus: status,
		Detail:     detail,
	}
}

// parseErrorDetail extracts a human-readable detail from an error body. The
// service answers with either an RFC 7807 problem document or a bare
// {"detail": ...} object; both carry a "detail" member. Anything unparsable
// falls back to the raw status text.
func parseErrorDetail(status int, body []byte) string {
	var problem problems.Problem
	if err := json.Unmarshal(body, &problem); err == nil && problem.Detail != "" {
		return problem.Detail
	}

	return http.StatusText(status)
}
