package ports

import (
	"context"
	"io"

	"canvas-backend/domain/core/valueobjects"
)

// MediaRef points at media either by URL or by inline bytes
type MediaRef struct {
	URL      string
	Data     []byte
	MimeType string
	Name     string
}

// Extracted is the raw answer of a remote extractor
type Extracted struct {
	Content   string
	Title     string
	Thumbnail string
	Images    []string
	// Instagram only
	Caption   string
	MediaType string
	VideoURL  string
}

// Transcript is the result of a transcription call. A missing transcript
// is reported with Available=false rather than an error.
type Transcript struct {
	Text      string
	Available bool
}

// Extractors turns URLs and media into text
type Extractors interface {
	ExtractYouTube(ctx context.Context, url string) (*Extracted, error)
	ExtractInstagram(ctx context.Context, url string) (*Extracted, error)
	FetchURL(ctx context.Context, url string) (*Extracted, error)
	Transcribe(ctx context.Context, media MediaRef) (Transcript, error)
	ExtractImagesText(ctx context.Context, imageURLs []string) (string, error)
}

// ImageAnalyzer runs OCR and structured style analysis on a single image.
// AnalyzeStyle returns the analyzer's raw JSON object.
type ImageAnalyzer interface {
	OCR(ctx context.Context, image MediaRef) (string, error)
	AnalyzeStyle(ctx context.Context, image MediaRef) (map[string]interface{}, error)
}

// TextRequest is one streamed text generation call
type TextRequest struct {
	Context   string                     `json:"context"`
	Briefing  string                     `json:"briefing,omitempty"`
	Format    valueobjects.ContentFormat `json:"format"`
	Platform  valueobjects.Platform      `json:"platform"`
	Variation int                        `json:"variation,omitempty"`
	Total     int                        `json:"totalVariations,omitempty"`
}

// TextGenerator opens a streamed generation. The returned body carries
// newline-delimited "data:" frames terminated by a [DONE] sentinel.
// A payment-required answer is returned as a quota error.
type TextGenerator interface {
	StreamText(ctx context.Context, req TextRequest) (io.ReadCloser, error)
}

// ImageRequest is one image generation call
type ImageRequest struct {
	Prompt          string                `json:"prompt"`
	AspectRatio     string                `json:"aspectRatio"`
	Style           string                `json:"style,omitempty"`
	StyleContext    string                `json:"styleContext,omitempty"`
	Instructions    string                `json:"instructions,omitempty"`
	ImageType       string                `json:"imageType,omitempty"`
	Platform        valueobjects.Platform `json:"platform,omitempty"`
	References      []string              `json:"referenceImages,omitempty"`
	NoText          bool                  `json:"noText,omitempty"`
	PreserveSubject bool                  `json:"preserveSubject,omitempty"`
}

// EditRequest is one image edit call
type EditRequest struct {
	BaseImage   string `json:"imageUrl"`
	Instruction string `json:"instruction"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// ImageGenerator produces and edits images, answering with an image URL
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
	EditImage(ctx context.Context, req EditRequest) (string, error)
}

// ObjectStorage uploads binary media and returns a public URL
type ObjectStorage interface {
	Upload(ctx context.Context, path, contentType string, data io.Reader) (string, error)
}

// LocalMediaStore keeps media that could not be uploaded. References it
// hands out are ephemeral and only valid for the running process.
type LocalMediaStore interface {
	Put(name, mimeType string, data []byte) string
	Get(ref string) ([]byte, string, bool)
}
