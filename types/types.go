// Package types defines the data structures used in the URL shortener service.
package types

import "time"

// SequenceKey is the fixed key of the singleton sequence counter record.
const SequenceKey = "sequence"

// URLMapping is a persisted long URL to short URL pair.
// ShortURL is unique across all stored mappings, LongURL is not.
type URLMapping struct {
	LongURL   string    `json:"longUrl"`
	ShortURL  string    `json:"shortUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// SequenceCounter is the durable counter the sequence IDs are claimed from.
// Version is bumped on every claim and guards against lost updates.
type SequenceCounter struct {
	Key     string
	Value   uint64
	Version uint64
}

// ShortenRequest represents the request structure for shortening a URL.
type ShortenRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ShortenResponse represents the response structure for a shortened URL.
// Link is the absolute short link, set when a public base URL is configured.
type ShortenResponse struct {
	LongURL  string `json:"longUrl"`
	ShortURL string `json:"shortUrl"`
	Link     string `json:"link,omitempty"`
}

// NewShortenResponse builds the response body for a persisted mapping.
func NewShortenResponse(m URLMapping) ShortenResponse {
	return ShortenResponse{
		LongURL:  m.LongURL,
		ShortURL: m.ShortURL,
	}
}
