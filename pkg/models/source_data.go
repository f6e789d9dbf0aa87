package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// SourceType is the tag selecting the SourceData variant of an idea.
type SourceType string

const (
	SourceTypeManual SourceType = "manual"
	SourceTypeFile   SourceType = "file"
	SourceTypeURL    SourceType = "url"
)

// IsValid returns true if the source type is known.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeManual, SourceTypeFile, SourceTypeURL:
		return true
	default:
		return false
	}
}

// ManualSource is typed-in context for an idea.
type ManualSource struct {
	Notes string `json:"notes,omitempty"`
}

// FileSource points at an uploaded reference document.
type FileSource struct {
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// URLSource points at a reference web page.
type URLSource struct {
	URL string `json:"url"`
}

// SourceData is a tagged union keyed by SourceType. Exactly one variant is set
// and it always matches Type.
type SourceData struct {
	Type   SourceType
	Manual *ManualSource
	File   *FileSource
	URL    *URLSource
}

// NewManualSource builds a manual SourceData.
func NewManualSource(notes string) SourceData {
	return SourceData{Type: SourceTypeManual, Manual: &ManualSource{Notes: notes}}
}

// NewFileSource builds a file SourceData.
func NewFileSource(f FileSource) SourceData {
	return SourceData{Type: SourceTypeFile, File: &f}
}

// NewURLSource builds a url SourceData.
func NewURLSource(u string) SourceData {
	return SourceData{Type: SourceTypeURL, URL: &URLSource{URL: u}}
}

// Validate checks that the set variant matches the tag and is well-formed.
func (s SourceData) Validate() error {
	switch s.Type {
	case SourceTypeManual:
		if s.Manual == nil || s.File != nil || s.URL != nil {
			return fmt.Errorf("source_data does not match source_type %q", s.Type)
		}
	case SourceTypeFile:
		if s.File == nil || s.Manual != nil || s.URL != nil {
			return fmt.Errorf("source_data does not match source_type %q", s.Type)
		}
		if strings.TrimSpace(s.File.FilePath) == "" {
			return fmt.Errorf("file source requires file_path")
		}
	case SourceTypeURL:
		if s.URL == nil || s.Manual != nil || s.File != nil {
			return fmt.Errorf("source_data does not match source_type %q", s.Type)
		}
		u, err := url.Parse(s.URL.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("url source requires an absolute http(s) url")
		}
	default:
		return fmt.Errorf("unknown source_type %q", s.Type)
	}
	return nil
}

// variant returns the value stored for the active tag.
func (s SourceData) variant() any {
	switch s.Type {
	case SourceTypeManual:
		return s.Manual
	case SourceTypeFile:
		return s.File
	case SourceTypeURL:
		return s.URL
	}
	return nil
}

// MarshalJSON encodes only the active variant. The tag is stored separately
// in the source_type column.
func (s SourceData) MarshalJSON() ([]byte, error) {
	v := s.variant()
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// DecodeSourceData decodes raw JSON into the variant selected by sourceType.
// Unknown fields are rejected so a payload for one variant cannot pass as another.
func DecodeSourceData(sourceType SourceType, raw json.RawMessage) (SourceData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	out := SourceData{Type: sourceType}
	var target any
	switch sourceType {
	case SourceTypeManual:
		out.Manual = &ManualSource{}
		target = out.Manual
	case SourceTypeFile:
		out.File = &FileSource{}
		target = out.File
	case SourceTypeURL:
		out.URL = &URLSource{}
		target = out.URL
	default:
		return SourceData{}, fmt.Errorf("unknown source_type %q", sourceType)
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return SourceData{}, fmt.Errorf("decode %s source_data: %w", sourceType, err)
	}
	return out, nil
}
