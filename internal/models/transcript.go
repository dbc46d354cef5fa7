package models

import (
	"time"
)

// PageRange is the first/last page a section spans
type PageRange struct {
	FirstPage int `json:"first_page"`
	LastPage  int `json:"last_page"`
}

// FieldLocation points a field name at the page and section it came from
type FieldLocation struct {
	Page    int    `json:"page"`
	Section string `json:"section"`
}

// Transcript is a searchable textual index of a document's extracted content,
// used by keyword-driven mapping.
type Transcript struct {
	DocumentID       string                   `json:"document_id"`
	JobID            string                   `json:"job_id"`
	FullTranscript   string                   `json:"full_transcript"`
	PageTranscripts  map[int]string           `json:"page_transcripts"`
	SectionIndex     map[string]PageRange     `json:"section_index"`
	FieldLocations   map[string]FieldLocation `json:"field_locations"`
	TotalPages       int                      `json:"total_pages"`
	TotalSections    int                      `json:"total_sections"`
	GenerationTimeMs int64                    `json:"generation_time_ms"`
	CreatedAt        time.Time                `json:"created_at"`
}
