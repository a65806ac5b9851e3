// Package mail defines the mail-source surface consumed by the pipeline.
// Connectors that authenticate against a real mailbox implement Source;
// the pipeline itself only sees fetched records.
package mail

import (
	"context"
	"time"
)

// Message is one retrieved mail record.
type Message struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Date       time.Time `json:"date"`
	HTMLOrText string    `json:"html_or_text"`
}

// Source retrieves raw messages for a category within a time window.
type Source interface {
	Fetch(ctx context.Context, category string, since time.Time) ([]Message, error)
}
