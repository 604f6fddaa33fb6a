package workflow

import (
	"context"

	"github.com/dressly/tryon/pkg/models"
)

// CaptureService is the platform camera collaborator. Cancellation is a
// normal outcome, reported as a user_cancelled classified error.
type CaptureService interface {
	RequestPermission(ctx context.Context) (bool, error)
	Capture(ctx context.Context) (models.CapturedPhoto, error)
}

// PickerService is the gallery/picker collaborator.
type PickerService interface {
	Pick(ctx context.Context) (models.CapturedPhoto, error)
}

// Preprocessor converts a captured photo into a reusable server-side
// artifact. Best-effort: the controller swallows its failures.
type Preprocessor interface {
	Preprocess(ctx context.Context, photo models.CapturedPhoto, clothType models.ClothType) (models.PreprocessToken, error)
}

// Submitter executes the primary try-on request.
type Submitter interface {
	Submit(ctx context.Context, payload models.SubmitPayload) (models.TryOnResult, error)
}

// GarmentResolver materializes a garment reference into an uploadable file.
type GarmentResolver interface {
	Resolve(ctx context.Context, ref models.GarmentReference) (models.ResolvedGarment, error)
}
