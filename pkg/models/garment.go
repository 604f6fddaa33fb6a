package models

import "fmt"

// ClothType is the garment category, used both for UI copy and as the
// cloth_type request field.
type ClothType string

const (
	ClothUpper   ClothType = "upper"
	ClothLower   ClothType = "lower"
	ClothOverall ClothType = "overall"
)

// ParseClothType parses a cloth type string. Unknown values fall back to
// upper and return an error so callers can decide whether to care.
func ParseClothType(s string) (ClothType, error) {
	switch ClothType(s) {
	case ClothUpper, ClothLower, ClothOverall:
		return ClothType(s), nil
	default:
		return ClothUpper, fmt.Errorf("unknown cloth type %q", s)
	}
}

// SourceKind tags where a garment image lives.
type SourceKind string

const (
	SourceBundled SourceKind = "bundled" // Shipped with the catalog bundle
	SourceRemote  SourceKind = "remote"  // Fetched from a URL on demand
)

// GarmentSource is a tagged variant: exactly one of Asset or URL is set,
// selected by Kind. Both resolution strategies produce a ResolvedGarment.
type GarmentSource struct {
	Kind  SourceKind `json:"kind"  validate:"required,oneof=bundled remote"`
	Asset string     `json:"asset,omitempty" validate:"required_if=Kind bundled"`
	URL   string     `json:"url,omitempty"   validate:"required_if=Kind remote,omitempty,url"`
}

// GarmentReference identifies a catalog item and where its image comes from.
type GarmentReference struct {
	ID        string        `json:"id"         validate:"required"`
	Name      string        `json:"name"       validate:"required"`
	ClothType ClothType     `json:"cloth_type" validate:"required,oneof=upper lower overall"`
	Source    GarmentSource `json:"source"     validate:"required"`
}

// ResolvedGarment is a garment image materialized to a local file, ready for
// multipart upload. Derived once per reference per submission attempt.
type ResolvedGarment struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
}
