package entities

import (
	"time"

	"canvas-backend/domain/core/valueobjects"
)

// GenerationStep is the current-step label of a generator node
type GenerationStep string

const (
	StepIdle        GenerationStep = "idle"
	StepAggregating GenerationStep = "aggregating"
	StepAnalyzing   GenerationStep = "analyzing"
	StepGenerating  GenerationStep = "generating"
	StepDone        GenerationStep = "done"
	StepError       GenerationStep = "error"
)

// AttachmentTab selects the active sub-payload of an attachment node
type AttachmentTab string

const (
	TabLink  AttachmentTab = "link"
	TabText  AttachmentTab = "text"
	TabFile  AttachmentTab = "file"
	TabImage AttachmentTab = "image"
)

// SourceData is the payload of a source node (url, pasted text or uploaded files)
type SourceData struct {
	SourceType       valueobjects.SourceType `json:"sourceType"`
	Value            string                  `json:"value,omitempty"`
	Title            string                  `json:"title,omitempty"`
	Thumbnail        string                  `json:"thumbnail,omitempty"`
	ContentKind      string                  `json:"contentKind,omitempty"`
	ExtractedContent string                  `json:"extractedContent,omitempty"`
	ExtractedImages  []string                `json:"extractedImages,omitempty"`
	WordCount        int                     `json:"wordCount,omitempty"`
	Files            []MediaItem             `json:"files,omitempty"`
	IsExtracting     bool                    `json:"isExtracting,omitempty"`
	ExtractedAt      *time.Time              `json:"extractedAt,omitempty"`
}

// Kind implements NodeData
func (*SourceData) Kind() NodeKind { return KindSource }

// AttachmentData unifies link, text, file and image sub-payloads in one node
type AttachmentData struct {
	ActiveTab        AttachmentTab `json:"activeTab"`
	URL              string        `json:"url,omitempty"`
	Title            string        `json:"title,omitempty"`
	ExtractedContent string        `json:"extractedContent,omitempty"`
	Text             string        `json:"text,omitempty"`
	Files            []MediaItem   `json:"files,omitempty"`
	Images           []MediaItem   `json:"images,omitempty"`
	IsExtracting     bool          `json:"isExtracting,omitempty"`
}

// Kind implements NodeData
func (*AttachmentData) Kind() NodeKind { return KindAttachment }

// LibraryData is a read-only snapshot of a library item taken at selection time
type LibraryData struct {
	ItemID   string `json:"itemId"`
	Title    string `json:"title,omitempty"`
	Content  string `json:"content,omitempty"`
	ItemType string `json:"itemType,omitempty"`
}

// Kind implements NodeData
func (*LibraryData) Kind() NodeKind { return KindLibrary }

// PromptData carries the free-text briefing
type PromptData struct {
	Briefing string `json:"briefing"`
}

// Kind implements NodeData
func (*PromptData) Kind() NodeKind { return KindPrompt }

// ImageOptions are the image-specific settings of a generator node
type ImageOptions struct {
	Style           string `json:"imageStyle,omitempty"`
	AspectRatio     string `json:"aspectRatio,omitempty"`
	ImageType       string `json:"imageType,omitempty"`
	NoText          bool   `json:"noText,omitempty"`
	PreserveSubject bool   `json:"preserveSubject,omitempty"`
}

// GeneratorData is the payload of a generator node
type GeneratorData struct {
	Format         valueobjects.ContentFormat `json:"format"`
	Platform       valueobjects.Platform      `json:"platform"`
	IsGenerating   bool                       `json:"isGenerating"`
	Progress       int                        `json:"progress"`
	Step           GenerationStep             `json:"currentStep"`
	Quantity       int                        `json:"quantity"`
	GeneratedCount int                        `json:"generatedCount"`
	LastError      string                     `json:"lastError,omitempty"`
	ImageOptions
}

// Kind implements NodeData
func (*GeneratorData) Kind() NodeKind { return KindGenerator }

// EffectiveQuantity clamps the batch quantity to [1, max]
func (g *GeneratorData) EffectiveQuantity(max int) int {
	q := g.Quantity
	if q < 1 {
		q = 1
	}
	if max > 0 && q > max {
		q = max
	}
	return q
}

// ImageEditorData is the payload of an image editor node
type ImageEditorData struct {
	BaseImage    string `json:"imageUrl,omitempty"`
	Instruction  string `json:"editInstruction,omitempty"`
	AspectRatio  string `json:"aspectRatio"`
	IsProcessing bool   `json:"isProcessing,omitempty"`
	LastError    string `json:"lastError,omitempty"`
}

// Kind implements NodeData
func (*ImageEditorData) Kind() NodeKind { return KindImageEditor }

// ImageSourceData holds a small bounded collection of uploaded images
type ImageSourceData struct {
	Images []MediaItem `json:"images,omitempty"`
}

// Kind implements NodeData
func (*ImageSourceData) Kind() NodeKind { return KindImageSource }
