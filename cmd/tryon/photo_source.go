package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dressly/tryon/pkg/models"
)

// filePhotoSource satisfies both capture collaborators by serving a photo
// from a file on disk. Permission is always granted; there is no camera to
// gate on the command line.
type filePhotoSource struct {
	path string
}

func (s filePhotoSource) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

func (s filePhotoSource) Capture(ctx context.Context) (models.CapturedPhoto, error) {
	return s.load()
}

func (s filePhotoSource) Pick(ctx context.Context) (models.CapturedPhoto, error) {
	return s.load()
}

func (s filePhotoSource) load() (models.CapturedPhoto, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return models.CapturedPhoto{}, fmt.Errorf("photo file is not readable: %w", err)
	}

	if info.Size() == 0 {
		return models.CapturedPhoto{}, fmt.Errorf("photo file %s is empty", s.path)
	}

	mimeType := "image/jpeg"
	if strings.EqualFold(filepath.Ext(s.path), ".png") {
		mimeType = "image/png"
	}

	return models.CapturedPhoto{URI: s.path, MimeType: mimeType}, nil
}
