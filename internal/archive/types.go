// Package archive defines the record types shared by the harvest, ingest, and
// transcription pipelines.
package archive

import (
	"strings"
	"time"
)

// TimeLayout formats addedAt timestamps.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// MediaType is the coarse kind of an archival item.
type MediaType string

// Media types understood by the classifier and the store.
const (
	MediaText  MediaType = "text"
	MediaPDF   MediaType = "pdf"
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// MediaTypes lists every valid media type.
var MediaTypes = []MediaType{MediaText, MediaPDF, MediaImage, MediaAudio, MediaVideo}

// ParseMediaType maps a case-insensitive name onto a MediaType.
func ParseMediaType(raw string) (MediaType, bool) {
	candidate := MediaType(strings.ToLower(strings.TrimSpace(raw)))
	for _, m := range MediaTypes {
		if m == candidate {
			return m, true
		}
	}
	return "", false
}

// Valid reports whether m is one of the known media types.
func (m MediaType) Valid() bool {
	_, ok := ParseMediaType(string(m))
	return ok
}

// Playable reports whether the item carries an audio track worth transcribing.
func (m MediaType) Playable() bool {
	return m == MediaAudio || m == MediaVideo
}

// Record is the normalized unit produced by harvesting a remote detail page.
// Empty strings mean "unknown" and are written as NULL by the store.
type Record struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Date           string    `json:"date,omitempty"`
	Creators       []string  `json:"creators,omitempty"`
	Subjects       []string  `json:"subjects,omitempty"`
	Collection     string    `json:"collection,omitempty"`
	Series         string    `json:"series,omitempty"`
	Rights         string    `json:"rights,omitempty"`
	SourceURL      string    `json:"sourceUrl,omitempty"`
	MediaType      MediaType `json:"mediaType"`
	DurationSec    *float64  `json:"durationSec,omitempty"`
	Thumbnail      string    `json:"thumbnail,omitempty"`
	Citation       string    `json:"citation,omitempty"`
	Advisory       bool      `json:"advisory"`
	ChecksumSHA256 string    `json:"checksumSha256,omitempty"`
	AddedAt        string    `json:"addedAt,omitempty"`
	MediaURL       string    `json:"mediaUrl,omitempty"`
}

// Item is the store's unit of truth: a Record plus local payload fields.
type Item struct {
	Record
	LocalPath       string `json:"localPath,omitempty"`
	TranscriptText  string `json:"transcriptText,omitempty"`
	OCRText         string `json:"ocrText,omitempty"`
	CaptionsVTTPath string `json:"captionsVttPath,omitempty"`
	CaptionsSRTPath string `json:"captionsSrtPath,omitempty"`
}

// Collection is derived from the distinct collection values of ingested items.
type Collection struct {
	ID          string `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description,omitempty" db:"description"`
}

// SeedRecord is an operator-supplied starting point for harvesting one item.
// Every field other than URL overrides what extraction finds on the page.
type SeedRecord struct {
	URL         string    `json:"url" yaml:"url"`
	Title       string    `json:"title,omitempty" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Date        string    `json:"date,omitempty" yaml:"date"`
	Collection  string    `json:"collection,omitempty" yaml:"collection"`
	Series      string    `json:"series,omitempty" yaml:"series"`
	MediaType   MediaType `json:"mediaType,omitempty" yaml:"mediaType"`
	Rights      string    `json:"rights,omitempty" yaml:"rights"`
	Citation    string    `json:"citation,omitempty" yaml:"citation"`
	Advisory    bool      `json:"advisory,omitempty" yaml:"advisory"`
	Creators    []string  `json:"creators,omitempty" yaml:"creators"`
	Subjects    []string  `json:"subjects,omitempty" yaml:"subjects"`
	MediaURL    string    `json:"mediaUrl,omitempty" yaml:"mediaUrl"`
}

// JobStatus is the persisted outcome of one transcription job.
type JobStatus string

// Transcription job outcomes. Pending is never persisted.
const (
	JobPending  JobStatus = "pending"
	JobComplete JobStatus = "complete"
	JobFailed   JobStatus = "failed"
)

// StatusEntry is one row of the transcription status map.
type StatusEntry struct {
	Status    JobStatus `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Error     string    `json:"error,omitempty"`
}
