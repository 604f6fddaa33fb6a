package models

// CapturedPhoto is a locally addressable photo of the person, produced by the
// camera or the gallery picker. At most one is live per workflow.
type CapturedPhoto struct {
	// URI is an opaque local resource handle, typically a file path.
	URI      string `json:"uri"      validate:"required"`
	MimeType string `json:"mime_type" validate:"required"`
	// Generation tags the photo for stale-response suppression: background
	// results carrying a different generation than the controller's current
	// photo are dropped on arrival.
	Generation string `json:"generation" validate:"required"`
}

// PreprocessToken is an opaque server-side cache key substituting for
// re-uploading the full photo at submit time. Absence is always legal; the
// submission then carries the raw photo instead.
type PreprocessToken struct {
	Key string `json:"key"`
	// PhotoGeneration ties the token to the photo it was issued for. A token
	// may never be spent on a submission for a different photo.
	PhotoGeneration string `json:"photo_generation"`
}

// MatchesPhoto reports whether the token was issued for the given photo.
func (t PreprocessToken) MatchesPhoto(photo *CapturedPhoto) bool {
	return photo != nil && t.Key != "" && t.PhotoGeneration == photo.Generation
}
