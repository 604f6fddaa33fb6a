// Package client implements the HTTP clients for the remote try-on inference
// service: the best-effort preprocessing call, the primary try-on submission
// and the advisory health probe.
package client

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the endpoint and the per-call timeout ceilings. Inference is
// compute-heavy, so the submit ceiling is on the order of minutes.
type Config struct {
	BaseURL           string        `validate:"required,http_url"`
	SubmitTimeout     time.Duration `validate:"required"`
	PreprocessTimeout time.Duration `validate:"required"`
	ProbeTimeout      time.Duration `validate:"required"`
}

const (
	DefaultSubmitTimeout     = 3 * time.Minute
	DefaultPreprocessTimeout = 90 * time.Second
	DefaultProbeTimeout      = 5 * time.Second
)

// NewConfig builds a config for the given base URL with default timeouts.
func NewConfig(baseURL string) Config {
	return Config{
		BaseURL:           strings.TrimRight(baseURL, "/"),
		SubmitTimeout:     DefaultSubmitTimeout,
		PreprocessTimeout: DefaultPreprocessTimeout,
		ProbeTimeout:      DefaultProbeTimeout,
	}
}

func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	return validate.Struct(c)
}

func (c Config) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}
