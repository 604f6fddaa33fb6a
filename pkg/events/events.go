// Package events defines event types and structures for try-on workflow
// lifecycle notifications. The presentation layer subscribes to these instead
// of polling the controller.
package events

import (
	"time"

	"github.com/dressly/tryon/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow lifecycle event.
const Topic = "tryon.workflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	StepChangedEvent         EventType = "workflow.step.changed"
	PhotoCapturedEvent       EventType = "workflow.photo.captured"
	PreprocessStartedEvent   EventType = "workflow.preprocess.started"
	PreprocessFinishedEvent  EventType = "workflow.preprocess.finished"
	SubmissionStartedEvent   EventType = "workflow.submission.started"
	SubmissionCompletedEvent EventType = "workflow.submission.completed"
	SubmissionFailedEvent    EventType = "workflow.submission.failed"
	FlowResetEvent           EventType = "workflow.flow.reset"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBase constructs the embedded base for a new event.
func NewBase(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// StepChanged is published on every workflow step transition.
type StepChanged struct {
	BaseEvent

	From models.Step `json:"from"`
	To   models.Step `json:"to"`
}

func (e StepChanged) GetType() EventType {
	return StepChangedEvent
}

// PhotoCaptured is published when a photo becomes available, from either the
// camera or the gallery picker.
type PhotoCaptured struct {
	BaseEvent

	Generation string `json:"generation"`
	MimeType   string `json:"mime_type"`
	Origin     string `json:"origin"` // "camera" or "gallery"
}

func (e PhotoCaptured) GetType() EventType {
	return PhotoCapturedEvent
}

// PreprocessStarted is published when the background preprocessing call for a
// photo generation is kicked off.
type PreprocessStarted struct {
	BaseEvent

	Generation string `json:"generation"`
}

func (e PreprocessStarted) GetType() EventType {
	return PreprocessStartedEvent
}

// PreprocessFinished is published when the background call resolves. Stale
// marks a result that arrived after its photo was discarded and was dropped
// without mutating state.
type PreprocessFinished struct {
	BaseEvent

	Generation string `json:"generation"`
	CacheKey   string `json:"cache_key,omitempty"`
	Error      string `json:"error,omitempty"`
	Stale      bool   `json:"stale"`
}

func (e PreprocessFinished) GetType() EventType {
	return PreprocessFinishedEvent
}

// SubmissionStarted is published when a try-on submission enters flight.
type SubmissionStarted struct {
	BaseEvent

	Generation   string `json:"generation"`
	GarmentID    string `json:"garment_id"`
	PayloadShape string `json:"payload_shape"` // "cache_key" or "person_image"
}

func (e SubmissionStarted) GetType() EventType {
	return SubmissionStartedEvent
}

// SubmissionCompleted is published when a submission yields a result.
type SubmissionCompleted struct {
	BaseEvent

	GarmentID string        `json:"garment_id"`
	Duration  time.Duration `json:"duration"`
}

func (e SubmissionCompleted) GetType() EventType {
	return SubmissionCompletedEvent
}

// SubmissionFailed is published when garment resolution or the try-on call
// fails. The workflow returns to previewing; the failure is never fatal.
type SubmissionFailed struct {
	BaseEvent

	GarmentID string           `json:"garment_id"`
	Kind      models.ErrorKind `json:"kind"`
	Error     string           `json:"error"`
	Duration  time.Duration    `json:"duration"`
}

func (e SubmissionFailed) GetType() EventType {
	return SubmissionFailedEvent
}

// FlowReset is published when the user exits the flow and all ephemeral state
// is cleared.
type FlowReset struct {
	BaseEvent
}

func (e FlowReset) GetType() EventType {
	return FlowResetEvent
}
