package link

import (
	"encoding/json"
	"fmt"
)

// payloadVersion is the current encoding version for vector record payloads.
// Bump when adding fields so older readers can detect blobs they don't fully
// understand.
const payloadVersion = 1

// VectorPayload is the typed metadata blob attached to a vector record.
// It travels through the vector store as opaque JSON and is decoded by the
// search engine when scoring candidates.
type VectorPayload struct {
	Version     int      `json:"v"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Date        string   `json:"date,omitempty"`
}

// PayloadFromMetadata builds a VectorPayload from extracted metadata.
func PayloadFromMetadata(m Metadata, date string) VectorPayload {
	return VectorPayload{
		Version:     payloadVersion,
		URL:         m.URL,
		Title:       m.Title,
		Description: m.Description,
		ImageURL:    m.ImageURL,
		Tags:        m.Tags,
		Categories:  m.Categories,
		Date:        date,
	}
}

// EncodeVectorPayload serializes a payload, stamping the current version.
func EncodeVectorPayload(p VectorPayload) (string, error) {
	p.Version = payloadVersion
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding vector payload: %w", err)
	}
	return string(b), nil
}

// DecodeVectorPayload parses a payload blob. A malformed blob returns an
// empty payload together with the error; callers are expected to treat the
// record as having no metadata rather than failing the batch.
func DecodeVectorPayload(raw string) (VectorPayload, error) {
	var p VectorPayload
	if raw == "" {
		return VectorPayload{}, nil
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return VectorPayload{}, fmt.Errorf("decoding vector payload: %w", err)
	}
	return p, nil
}

// SearchText returns the concatenation of the payload's textual fields used
// for keyword-overlap scoring.
func (p VectorPayload) SearchText() string {
	text := p.Title + " " + p.Description
	for _, t := range p.Tags {
		text += " " + t
	}
	return text + " " + p.URL
}
