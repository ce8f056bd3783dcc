package valueobjects

// ContentFormat is the target format of a generator node
type ContentFormat string

const (
	FormatPost        ContentFormat = "post"
	FormatCarousel    ContentFormat = "carousel"
	FormatThread      ContentFormat = "thread"
	FormatStories     ContentFormat = "stories"
	FormatReelScript  ContentFormat = "reel_script"
	FormatVideoScript ContentFormat = "video_script"
	FormatNewsletter  ContentFormat = "newsletter"
	FormatBlog        ContentFormat = "blog"
	FormatEmail       ContentFormat = "email"
	FormatImage       ContentFormat = "image"
)

// IsValid reports whether the format belongs to the closed set
func (f ContentFormat) IsValid() bool {
	switch f {
	case FormatPost, FormatCarousel, FormatThread, FormatStories, FormatReelScript,
		FormatVideoScript, FormatNewsletter, FormatBlog, FormatEmail, FormatImage:
		return true
	default:
		return false
	}
}

// IsImage reports whether generation produces a single image result
func (f ContentFormat) IsImage() bool {
	return f == FormatImage
}

// Platform is the publishing target of a generator node
type Platform string

const (
	PlatformInstagram  Platform = "instagram"
	PlatformLinkedIn   Platform = "linkedin"
	PlatformTwitter    Platform = "twitter"
	PlatformTikTok     Platform = "tiktok"
	PlatformYouTube    Platform = "youtube"
	PlatformFacebook   Platform = "facebook"
	PlatformNewsletter Platform = "newsletter"
	PlatformBlog       Platform = "blog"
)

// ApprovalStatus is the review state of an output node
type ApprovalStatus string

const (
	ApprovalDraft    ApprovalStatus = "draft"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// IsValid reports whether the status belongs to the closed set
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalDraft, ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	default:
		return false
	}
}

// SourceType is the origin kind of a source node
type SourceType string

const (
	SourceURL  SourceType = "url"
	SourceText SourceType = "text"
	SourceFile SourceType = "file"
)
