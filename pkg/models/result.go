package models

import "time"

// TryOnResult is the composed output image, decoded from the inline base64
// payload of a successful try-on response.
type TryOnResult struct {
	Image      []byte    `json:"-"`
	MimeType   string    `json:"mime_type"`
	ReceivedAt time.Time `json:"received_at"`
}
