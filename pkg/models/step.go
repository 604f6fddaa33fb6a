// Package models defines the core domain model for the try-on workflow engine.
package models

// Step represents the workflow step currently presented to the user.
// Exactly one step is active at a time; it is owned by the workflow controller.
type Step string

const (
	StepChoosing   Step = "choosing"   // Picking a photo source (camera or gallery)
	StepCapturing  Step = "capturing"  // Camera open, waiting for a shot
	StepPreviewing Step = "previewing" // Reviewing the captured photo
	StepSubmitting Step = "submitting" // Try-on request in flight
	StepResult     Step = "result"     // Composed output on screen
)

// stepTransitions lists the legal step transitions. Anything not listed
// is a programming error, not a user-reachable state.
var stepTransitions = map[Step][]Step{
	StepChoosing:   {StepCapturing, StepPreviewing},
	StepCapturing:  {StepPreviewing, StepChoosing},
	StepPreviewing: {StepSubmitting, StepChoosing},
	StepSubmitting: {StepResult, StepPreviewing},
	StepResult:     {StepPreviewing, StepChoosing},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s Step) CanTransition(next Step) bool {
	for _, allowed := range stepTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

func (s Step) String() string {
	return string(s)
}
