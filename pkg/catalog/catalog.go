// Package catalog supplies the ordered collection of garment references the
// user can try on. A default catalog ships embedded in the binary; an external
// JSON catalog can be loaded and is validated against an embedded schema
// before use.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/dressly/tryon/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed catalog.json schema.json assets
var embedded embed.FS

// Provider holds an ordered garment collection with lookup-by-id.
type Provider struct {
	garments []models.GarmentReference
}

// NewDefault loads the embedded catalog.
func NewDefault() (*Provider, error) {
	raw, err := embedded.ReadFile("catalog.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded catalog: %w", err)
	}

	return newProvider(raw)
}

// Load reads an external catalog JSON file, validating it against the catalog
// schema before accepting it.
func Load(path string) (*Provider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	return newProvider(raw)
}

func newProvider(raw []byte) (*Provider, error) {
	var garments []models.GarmentReference

	if err := json.Unmarshal(raw, &garments); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if len(garments) == 0 {
		return nil, fmt.Errorf("catalog has no garments")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	for i := range garments {
		if err := validate.Struct(&garments[i]); err != nil {
			return nil, fmt.Errorf("invalid garment %q: %w", garments[i].ID, err)
		}
	}

	return &Provider{garments: garments}, nil
}

func validateSchema(raw []byte) error {
	schemaRaw, err := embedded.ReadFile("schema.json")
	if err != nil {
		return fmt.Errorf("failed to read catalog schema: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaRaw)
	dataLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("catalog schema validation failed: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("catalog does not match schema: %s", strings.Join(details, "; "))
	}

	return nil
}

// Garments returns the ordered garment collection.
func (p *Provider) Garments() []models.GarmentReference {
	out := make([]models.GarmentReference, len(p.garments))
	copy(out, p.garments)

	return out
}

// Lookup returns the garment with the given id, falling back to the first
// catalog entry when the id is unknown or malformed.
func (p *Provider) Lookup(id string) models.GarmentReference {
	for _, garment := range p.garments {
		if garment.ID == id {
			return garment
		}
	}

	return p.garments[0]
}

// Assets exposes the bundled garment images for materialization by the
// asset resolver.
func Assets() (fs.FS, error) {
	return fs.Sub(embedded, "assets")
}
