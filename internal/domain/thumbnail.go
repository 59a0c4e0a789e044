package domain

import "time"

// Thumbnail is the stored record of one generated image. One row exists per
// image that was fully materialized and written to storage.
type Thumbnail struct {
	ID             string
	OwnerID        string
	Prompt         string
	EnhancedPrompt string
	ImageLocation  string
	SourceLocation string
	Provider       string
	MIME           string
	Width          int
	Height         int
	CreatedAt      time.Time
}
