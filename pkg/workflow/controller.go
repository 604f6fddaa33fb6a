// Package workflow implements the try-on workflow controller: a state machine
// owning the captured photo, the preprocessing token and the try-on result,
// and orchestrating the asset resolver and the service clients. The machine
// never gets stuck: every failure path lands back on a step the user can act
// on.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dressly/tryon/pkg/catalog"
	"github.com/dressly/tryon/pkg/diag"
	"github.com/dressly/tryon/pkg/eventbus"
	"github.com/dressly/tryon/pkg/events"
	"github.com/dressly/tryon/pkg/models"
	"github.com/dressly/tryon/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const component = "workflow"

// ErrSubmissionInFlight rejects duplicate submissions (e.g. a double-tap)
// while one is running.
var ErrSubmissionInFlight = errors.New("a submission is already in flight")

// Deps carries the controller's collaborators.
type Deps struct {
	Capture      CaptureService
	Picker       PickerService
	Preprocessor Preprocessor
	Submitter    Submitter
	Resolver     GarmentResolver
	Catalog      *catalog.Provider
	Bus          eventbus.EventPublisher
	Diagnostic   *diag.Log
	Logger       *slog.Logger
	Tracer       trace.Tracer
}

// Controller is the workflow state machine. All state mutations happen under
// one mutex; network calls run outside it.
type Controller struct {
	mu sync.Mutex

	step       models.Step
	photo      *models.CapturedPhoto
	token      *models.PreprocessToken
	result     *models.TryOnResult
	lastErr    *models.ClassifiedError
	selected   models.GarmentReference
	submitting bool

	// permissionNeeded marks that camera permission was denied and the UI
	// should offer a request-permission action instead of a capture button.
	permissionNeeded bool

	// pendingEvents queues step-change events recorded under the lock; they
	// are published by publishPending after the lock is released so they stay
	// ordered relative to the lifecycle events that follow.
	pendingEvents []eventbus.Event

	capture      CaptureService
	picker       PickerService
	preprocessor Preprocessor
	submitter    Submitter
	resolver     GarmentResolver
	catalog      *catalog.Provider
	bus          eventbus.EventPublisher
	diagnostic   *diag.Log
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewController builds a controller starting at the choosing step with the
// first catalog garment selected.
func NewController(deps Deps) *Controller {
	if deps.Diagnostic == nil {
		deps.Diagnostic = diag.NewLog(0)
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Tracer == nil {
		deps.Tracer = otelhelper.NoopTracer()
	}

	return &Controller{
		step:         models.StepChoosing,
		selected:     deps.Catalog.Lookup(""),
		capture:      deps.Capture,
		picker:       deps.Picker,
		preprocessor: deps.Preprocessor,
		submitter:    deps.Submitter,
		resolver:     deps.Resolver,
		catalog:      deps.Catalog,
		bus:          deps.Bus,
		diagnostic:   deps.Diagnostic,
		logger:       deps.Logger,
		tracer:       deps.Tracer,
	}
}

// Step returns the currently active workflow step.
func (c *Controller) Step() models.Step {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.step
}

// SelectGarment switches the current garment, falling back to the first
// catalog entry when the id is unknown.
func (c *Controller) SelectGarment(id string) models.GarmentReference {
	garment := c.catalog.Lookup(id)

	c.mu.Lock()
	c.selected = garment
	c.mu.Unlock()

	c.diagnostic.Appendf(component, "garment selected: %s (%s)", garment.ID, garment.ClothType)

	return garment
}

// BeginCapture moves to the capturing step and checks camera permission. A
// denial does not fail the flow: the controller exposes a request-permission
// action instead.
func (c *Controller) BeginCapture(ctx context.Context) error {
	c.mu.Lock()
	if !c.transitionLocked(ctx, models.StepCapturing) {
		step := c.step
		c.mu.Unlock()

		return fmt.Errorf("cannot start capture from step %s", step)
	}
	c.mu.Unlock()

	c.publishPending(ctx)

	return c.RequestCameraPermission(ctx)
}

// RequestCameraPermission (re-)requests camera permission from the platform
// collaborator. Safe to call repeatedly from the permission prompt.
func (c *Controller) RequestCameraPermission(ctx context.Context) error {
	granted, err := c.capture.RequestPermission(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil || !granted {
		c.permissionNeeded = true
		c.lastErr = models.NewClassified(models.KindPermissionDenied, "camera permission not granted")
		c.diagnostic.Append(component, "camera permission denied")

		return c.lastErr
	}

	c.permissionNeeded = false
	c.lastErr = nil

	return nil
}

// CapturePhoto takes a photo via the camera collaborator. A user cancel
// returns the flow to choosing without an error.
func (c *Controller) CapturePhoto(ctx context.Context) error {
	c.mu.Lock()
	if c.step != models.StepCapturing || c.permissionNeeded {
		step := c.step
		c.mu.Unlock()

		return fmt.Errorf("cannot capture from step %s", step)
	}
	c.mu.Unlock()

	photo, err := c.capture.Capture(ctx)
	if err != nil {
		if models.IsKind(err, models.KindUserCancelled) {
			c.mu.Lock()
			c.transitionLocked(ctx, models.StepChoosing)
			c.mu.Unlock()

			c.publishPending(ctx)

			return nil
		}

		return c.recordAcquireFailure(err, "capture")
	}

	c.acquirePhoto(ctx, photo, "camera")

	return nil
}

// PickFromGallery obtains a photo from the gallery picker. The photo is
// immediately available, so the flow jumps straight to previewing.
func (c *Controller) PickFromGallery(ctx context.Context) error {
	c.mu.Lock()
	if c.step != models.StepChoosing {
		step := c.step
		c.mu.Unlock()

		return fmt.Errorf("cannot pick from step %s", step)
	}
	c.mu.Unlock()

	photo, err := c.picker.Pick(ctx)
	if err != nil {
		if models.IsKind(err, models.KindUserCancelled) {
			return nil
		}

		return c.recordAcquireFailure(err, "gallery pick")
	}

	c.acquirePhoto(ctx, photo, "gallery")

	return nil
}

// recordAcquireFailure stores a photo acquisition failure so the snapshot can
// surface it, mirroring how permission denials are recorded.
func (c *Controller) recordAcquireFailure(err error, origin string) error {
	classified, ok := models.AsClassified(err)
	if !ok {
		classified = &models.ClassifiedError{Kind: "unclassified", Message: err.Error(), Err: err}
	}

	c.mu.Lock()
	c.lastErr = classified
	c.mu.Unlock()

	c.diagnostic.Appendf(component, "%s failed (%s): %s", origin, classified.Kind, classified.Message)

	return classified
}

// acquirePhoto installs a new live photo, invalidating any previous photo and
// token, and kicks off background preprocessing. A new generation tag makes
// any still-in-flight preprocessing result for the old photo stale.
func (c *Controller) acquirePhoto(ctx context.Context, photo models.CapturedPhoto, origin string) {
	if photo.Generation == "" {
		photo.Generation = uuid.New().String()
	}

	c.mu.Lock()
	c.photo = &photo
	c.token = nil
	c.result = nil
	c.lastErr = nil
	clothType := c.selected.ClothType
	c.transitionLocked(ctx, models.StepPreviewing)
	c.mu.Unlock()

	c.publishPending(ctx)

	c.diagnostic.Appendf(component, "photo acquired from %s (generation %s)", origin, photo.Generation)

	base := events.NewBase(events.PhotoCapturedEvent)
	c.publish(ctx, events.PhotoCaptured{
		BaseEvent:  base,
		Generation: photo.Generation,
		MimeType:   photo.MimeType,
		Origin:     origin,
	})

	// Latency-hiding optimization: fire preprocessing while the user reviews
	// the preview. Detached from the caller's context because the call is
	// never hard-cancelled, only ignored when stale.
	go c.runPreprocess(context.WithoutCancel(ctx), photo, clothType)
}

func (c *Controller) runPreprocess(ctx context.Context, photo models.CapturedPhoto, clothType models.ClothType) {
	c.publish(ctx, events.PreprocessStarted{
		BaseEvent:  events.NewBase(events.PreprocessStartedEvent),
		Generation: photo.Generation,
	})

	token, err := c.preprocessor.Preprocess(ctx, photo, clothType)

	c.mu.Lock()
	stale := c.photo == nil || c.photo.Generation != photo.Generation
	if !stale && err == nil {
		c.token = &token
	}
	c.mu.Unlock()

	finished := events.PreprocessFinished{
		BaseEvent:  events.NewBase(events.PreprocessFinishedEvent),
		Generation: photo.Generation,
		Stale:      stale,
	}

	switch {
	case stale:
		// The photo this call was issued for is gone. Drop the response on
		// arrival; its token must never leak into a later submission.
		c.diagnostic.Appendf(component, "stale preprocess result for %s dropped", photo.Generation)
	case err != nil:
		// Best-effort: no user-visible error, the next submission uploads the
		// full photo instead.
		finished.Error = err.Error()
		c.logger.DebugContext(ctx, "preprocess failed, falling back to full upload", "error", err)
		c.diagnostic.Appendf(component, "preprocess failed, will upload full photo: %v", err)
	default:
		finished.CacheKey = token.Key
		c.diagnostic.Appendf(component, "preprocess token ready for %s", photo.Generation)
	}

	c.publish(ctx, finished)
}

// DiscardPhoto drops the current photo and returns to choosing. The token is
// cleared synchronously under the lock, so no pending submission can observe
// a token for a discarded photo.
func (c *Controller) DiscardPhoto(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()

		return ErrSubmissionInFlight
	}

	if !c.transitionLocked(ctx, models.StepChoosing) {
		step := c.step
		c.mu.Unlock()

		return fmt.Errorf("cannot discard from step %s", step)
	}

	c.photo = nil
	c.token = nil
	c.result = nil
	c.lastErr = nil
	c.mu.Unlock()

	c.publishPending(ctx)
	c.diagnostic.Append(component, "photo discarded")

	return nil
}

// Submit runs the try-on for the currently selected garment: resolve the
// garment, pick the payload shape, execute the call. Failures return the flow
// to previewing with a classified error; the photo is kept so the user can
// retry without recapturing.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()

		return ErrSubmissionInFlight
	}

	if c.step != models.StepPreviewing || c.photo == nil {
		step := c.step
		c.mu.Unlock()

		return fmt.Errorf("cannot submit from step %s", step)
	}

	photo := *c.photo
	garment := c.selected

	var token *models.PreprocessToken
	if c.token != nil && c.token.MatchesPhoto(c.photo) {
		snapshot := *c.token
		token = &snapshot
	}

	c.submitting = true
	c.lastErr = nil
	c.transitionLocked(ctx, models.StepSubmitting)
	c.mu.Unlock()

	c.publishPending(ctx)

	shape := "person_image"
	if token != nil {
		shape = "cache_key"
	}

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "workflow.submit",
		attribute.String(otelhelper.GarmentIDKey, garment.ID),
		attribute.String(otelhelper.PayloadShapeKey, shape),
		attribute.String(otelhelper.PhotoGenerationKey, photo.Generation),
	)
	defer span.End()

	started := time.Now()

	c.publish(ctx, events.SubmissionStarted{
		BaseEvent:    events.NewBase(events.SubmissionStartedEvent),
		Generation:   photo.Generation,
		GarmentID:    garment.ID,
		PayloadShape: shape,
	})

	resolved, err := c.resolver.Resolve(ctx, garment)
	if err != nil {
		c.failSubmission(ctx, span, garment, err, time.Since(started))

		return err
	}

	payload := models.SubmitPayload{
		Token:     token,
		Garment:   resolved,
		ClothType: garment.ClothType,
	}
	if token == nil {
		payload.Photo = &photo
	}

	result, err := c.submitter.Submit(ctx, payload)
	if err != nil {
		c.failSubmission(ctx, span, garment, err, time.Since(started))

		return err
	}

	c.mu.Lock()
	c.submitting = false

	// The photo cannot be discarded while submitting, but a result for a
	// photo that is somehow no longer live is never applied.
	if c.photo == nil || c.photo.Generation != photo.Generation {
		c.transitionLocked(ctx, models.StepPreviewing)
		c.mu.Unlock()

		c.publishPending(ctx)
		c.diagnostic.Append(component, "result for stale photo dropped")

		return nil
	}

	// The result is only installed together with an accepted transition, so
	// step and result can never disagree in a snapshot.
	if !c.transitionLocked(ctx, models.StepResult) {
		c.mu.Unlock()

		c.publishPending(ctx)
		c.diagnostic.Append(component, "result dropped: workflow left the submitting step")

		return nil
	}

	c.result = &result
	c.mu.Unlock()

	c.publishPending(ctx)
	c.diagnostic.Appendf(component, "submission succeeded in %s", time.Since(started).Round(time.Millisecond))

	c.publish(ctx, events.SubmissionCompleted{
		BaseEvent: events.NewBase(events.SubmissionCompletedEvent),
		GarmentID: garment.ID,
		Duration:  time.Since(started),
	})

	return nil
}

func (c *Controller) failSubmission(ctx context.Context, span trace.Span, garment models.GarmentReference, err error, elapsed time.Duration) {
	classified, ok := models.AsClassified(err)
	if !ok {
		classified = &models.ClassifiedError{Kind: "unclassified", Message: err.Error(), Err: err}
	}

	otelhelper.SetError(span, classified)

	c.mu.Lock()
	c.submitting = false
	c.lastErr = classified
	c.transitionLocked(ctx, models.StepPreviewing)
	c.mu.Unlock()

	c.publishPending(ctx)
	c.logger.WarnContext(ctx, "submission failed", "garment", garment.ID, "kind", classified.Kind, "error", classified.Message)
	c.diagnostic.Appendf(component, "submission failed (%s): %s", classified.Kind, classified.Message)

	c.publish(ctx, events.SubmissionFailed{
		BaseEvent: events.NewBase(events.SubmissionFailedEvent),
		GarmentID: garment.ID,
		Kind:      classified.Kind,
		Error:     classified.Message,
		Duration:  elapsed,
	})
}

// TryAnotherGarment keeps the photo and returns to previewing so a different
// garment can be tried against it. Rejected while a submission is in flight:
// it is a result-screen action, and letting it run mid-flight would pull the
// step out from under the pending result.
func (c *Controller) TryAnotherGarment(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()

		return ErrSubmissionInFlight
	}

	if !c.transitionLocked(ctx, models.StepPreviewing) {
		step := c.step
		c.mu.Unlock()

		return fmt.Errorf("cannot try another garment from step %s", step)
	}

	c.result = nil
	c.lastErr = nil
	c.mu.Unlock()

	c.publishPending(ctx)

	return nil
}

// Reset exits the flow and clears all ephemeral state. Rejected while a
// submission is in flight.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()

		return ErrSubmissionInFlight
	}

	if c.step != models.StepChoosing {
		c.transitionLocked(ctx, models.StepChoosing)
	}

	c.photo = nil
	c.token = nil
	c.result = nil
	c.lastErr = nil
	c.permissionNeeded = false
	c.mu.Unlock()

	c.publishPending(ctx)
	c.diagnostic.Append(component, "flow reset")
	c.publish(ctx, events.FlowReset{BaseEvent: events.NewBase(events.FlowResetEvent)})

	return nil
}

// transitionLocked applies a step transition if legal. Callers hold the lock.
func (c *Controller) transitionLocked(ctx context.Context, next models.Step) bool {
	if !c.step.CanTransition(next) {
		c.logger.ErrorContext(ctx, "illegal step transition attempted", "from", c.step, "to", next)

		return false
	}

	from := c.step
	c.step = next

	c.diagnostic.Appendf(component, "step %s -> %s", from, next)

	c.pendingEvents = append(c.pendingEvents, events.StepChanged{
		BaseEvent: events.NewBase(events.StepChangedEvent),
		From:      from,
		To:        next,
	})

	return true
}

// publishPending drains the step-change events queued by transitionLocked and
// publishes them in order. Called right after releasing the lock.
func (c *Controller) publishPending(ctx context.Context) {
	c.mu.Lock()
	pending := c.pendingEvents
	c.pendingEvents = nil
	c.mu.Unlock()

	for _, event := range pending {
		c.publish(ctx, event)
	}
}

func (c *Controller) publish(ctx context.Context, event eventbus.Event) {
	if c.bus == nil {
		return
	}

	if err := c.bus.Publish(ctx, string(event.GetType()), event); err != nil {
		// Event delivery is observability, not control flow.
		c.logger.WarnContext(ctx, "failed to publish workflow event", "type", event.GetType(), "error", err)
	}
}
