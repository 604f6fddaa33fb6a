package workflow

import (
	"github.com/dressly/tryon/pkg/diag"
	"github.com/dressly/tryon/pkg/models"
)

// Snapshot is the read-only view exposed to the presentation layer.
type Snapshot struct {
	Step             models.Step
	HasPhoto         bool
	HasToken         bool
	Submitting       bool
	PermissionNeeded bool
	SelectedGarment  models.GarmentReference
	// ErrorMessage is the user-facing copy for the last failure, empty when
	// there is none. Raw errors never appear here unclassified.
	ErrorMessage string
	Result       *models.TryOnResult
	Diagnostics  []diag.Entry
}

// Snapshot returns a consistent view of the controller state plus the current
// diagnostic log for export or sharing.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()

	snapshot := Snapshot{
		Step:             c.step,
		HasPhoto:         c.photo != nil,
		HasToken:         c.token != nil && c.token.MatchesPhoto(c.photo),
		Submitting:       c.submitting,
		PermissionNeeded: c.permissionNeeded,
		SelectedGarment:  c.selected,
	}

	if c.lastErr != nil {
		snapshot.ErrorMessage = c.lastErr.UserMessage()
	}

	if c.result != nil {
		result := *c.result
		snapshot.Result = &result
	}

	c.mu.Unlock()

	snapshot.Diagnostics = c.diagnostic.Snapshot()

	return snapshot
}
