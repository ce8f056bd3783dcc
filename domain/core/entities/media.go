package entities

import (
	"strings"
)

// AnalysisState is the per-image processing state
type AnalysisState string

const (
	AnalysisIdle       AnalysisState = "idle"
	AnalysisProcessing AnalysisState = "processing"
	AnalysisDone       AnalysisState = "done"
	AnalysisError      AnalysisState = "error"
)

// AnalysisKind names which analysis is running on an image
type AnalysisKind string

const (
	AnalysisOCR   AnalysisKind = "ocr"
	AnalysisStyle AnalysisKind = "json"
)

// StyleAnalysis is the normalized result of a structured style analysis,
// regardless of which analyzer schema produced it.
type StyleAnalysis struct {
	DominantColors    []string `json:"dominantColors,omitempty"`
	Mood              string   `json:"mood,omitempty"`
	VisualStyle       string   `json:"visualStyle,omitempty"`
	Lighting          string   `json:"lighting,omitempty"`
	Composition       string   `json:"composition,omitempty"`
	HasText           bool     `json:"hasText"`
	PromptDescription string   `json:"promptDescription,omitempty"`
}

// Describe renders the analysis as a style hint string
func (s *StyleAnalysis) Describe() string {
	if s == nil {
		return ""
	}
	var parts []string
	if s.PromptDescription != "" {
		parts = append(parts, s.PromptDescription)
	}
	if s.VisualStyle != "" {
		parts = append(parts, "Style: "+s.VisualStyle)
	}
	if s.Mood != "" {
		parts = append(parts, "Mood: "+s.Mood)
	}
	if len(s.DominantColors) > 0 {
		parts = append(parts, "Colors: "+strings.Join(s.DominantColors, ", "))
	}
	if s.Lighting != "" {
		parts = append(parts, "Lighting: "+s.Lighting)
	}
	if s.Composition != "" {
		parts = append(parts, "Composition: "+s.Composition)
	}
	return strings.Join(parts, ". ")
}

// MediaItem is a per-file sub-record of a source, attachment or image-source node
type MediaItem struct {
	ID             string         `json:"id"`
	Name           string         `json:"name,omitempty"`
	MimeType       string         `json:"type,omitempty"`
	URL            string         `json:"url,omitempty"`
	Size           int64          `json:"size,omitempty"`
	Transcription  string         `json:"transcription,omitempty"`
	OCRText        string         `json:"ocrText,omitempty"`
	StyleAnalysis  *StyleAnalysis `json:"styleAnalysis,omitempty"`
	State          AnalysisState  `json:"analysisState,omitempty"`
	ProcessingKind AnalysisKind   `json:"processingType,omitempty"`
	IsProcessing   bool           `json:"isProcessing,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// IsImage reports whether the item is an image
func (m MediaItem) IsImage() bool {
	if strings.HasPrefix(m.MimeType, "image/") {
		return true
	}
	if m.MimeType != "" {
		return false
	}
	lower := strings.ToLower(m.Name)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".webp", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// IsAudioVisual reports whether the item needs transcription
func (m MediaItem) IsAudioVisual() bool {
	return strings.HasPrefix(m.MimeType, "audio/") || strings.HasPrefix(m.MimeType, "video/")
}

// MediaOf returns the media sub-records carried by a payload.
// Attachment nodes contribute both files and images.
func MediaOf(data NodeData) []MediaItem {
	switch d := data.(type) {
	case *SourceData:
		return d.Files
	case *AttachmentData:
		items := make([]MediaItem, 0, len(d.Files)+len(d.Images))
		items = append(items, d.Files...)
		return append(items, d.Images...)
	case *ImageSourceData:
		return d.Images
	default:
		return nil
	}
}

// UpdateMedia applies fn to the media item with the given ID in place.
// It reports whether the item was found.
func UpdateMedia(data NodeData, itemID string, fn func(*MediaItem)) bool {
	var lists []*[]MediaItem
	switch d := data.(type) {
	case *SourceData:
		lists = []*[]MediaItem{&d.Files}
	case *AttachmentData:
		lists = []*[]MediaItem{&d.Files, &d.Images}
	case *ImageSourceData:
		lists = []*[]MediaItem{&d.Images}
	}
	for _, list := range lists {
		for i := range *list {
			if (*list)[i].ID == itemID {
				fn(&(*list)[i])
				return true
			}
		}
	}
	return false
}
