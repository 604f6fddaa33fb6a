package models

import "errors"

// SubmitPayload is the input to a try-on submission. Exactly one of Token or
// Photo is carried on the wire: a live token replaces the full photo upload.
type SubmitPayload struct {
	Token     *PreprocessToken
	Photo     *CapturedPhoto
	Garment   ResolvedGarment
	ClothType ClothType
}

// UsesToken reports whether the payload rides on a server-side cache key
// instead of a full photo upload.
func (p SubmitPayload) UsesToken() bool {
	return p.Token != nil && p.Token.Key != ""
}

// Validate enforces the mutually exclusive payload shape.
func (p SubmitPayload) Validate() error {
	if p.UsesToken() && p.Photo != nil {
		return errors.New("payload carries both a cache token and a photo")
	}

	if !p.UsesToken() && p.Photo == nil {
		return errors.New("payload carries neither a cache token nor a photo")
	}

	if p.Garment.Path == "" {
		return errors.New("payload garment is unresolved")
	}

	return nil
}
