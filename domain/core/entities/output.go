package entities

import (
	"strings"
	"time"

	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// Version labels
const (
	VersionLabelEdit          = "Edit"
	VersionLabelBeforeRestore = "Before restore"
)

// Version is an immutable snapshot of an output's content
type Version struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Label     string    `json:"label,omitempty"`
}

// Comment is an entry of the output comment thread
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// OutputData is the payload of an output node
type OutputData struct {
	Content         string                     `json:"content,omitempty"`
	ImageURL        string                     `json:"imageUrl,omitempty"`
	IsImage         bool                       `json:"isImage,omitempty"`
	Format          valueobjects.ContentFormat `json:"format,omitempty"`
	Platform        valueobjects.Platform      `json:"platform,omitempty"`
	IsEditing       bool                       `json:"isEditing,omitempty"`
	AddedToPlanning bool                       `json:"addedToPlanning,omitempty"`
	ApprovalStatus  valueobjects.ApprovalStatus `json:"approvalStatus"`
	Versions        []Version                  `json:"versions,omitempty"`
	Comments        []Comment                  `json:"comments,omitempty"`
	IsStreaming     bool                       `json:"isStreaming,omitempty"`
	StreamProgress  int                        `json:"streamProgress,omitempty"`
	Variation       int                        `json:"variation,omitempty"`
	GeneratedAt     *time.Time                 `json:"generatedAt,omitempty"`
}

// Kind implements NodeData
func (*OutputData) Kind() NodeKind { return KindOutput }

// PushVersion prepends a version and drops the oldest entries beyond max
func (o *OutputData) PushVersion(content, label string, now time.Time, max int) Version {
	v := Version{
		ID:        valueobjects.NewID(),
		Content:   content,
		CreatedAt: now,
		Label:     label,
	}
	versions := make([]Version, 0, len(o.Versions)+1)
	versions = append(versions, v)
	versions = append(versions, o.Versions...)
	if max > 0 && len(versions) > max {
		versions = versions[:max]
	}
	o.Versions = versions
	return v
}

// EditContent replaces the content, keeping the previous content in history
func (o *OutputData) EditContent(content string, now time.Time, max int) bool {
	if content == o.Content {
		return false
	}
	o.PushVersion(o.Content, VersionLabelEdit, now, max)
	o.Content = content
	return true
}

// RestoreVersion brings back an older version. The pre-restoration content
// is pushed onto the history head.
func (o *OutputData) RestoreVersion(versionID string, now time.Time, max int) error {
	var target *Version
	for i := range o.Versions {
		if o.Versions[i].ID == versionID {
			v := o.Versions[i]
			target = &v
			break
		}
	}
	if target == nil {
		return pkgerrors.NewNotFoundError("version")
	}
	o.PushVersion(o.Content, VersionLabelBeforeRestore, now, max)
	o.Content = target.Content
	return nil
}

// SetApproval changes the review status
func (o *OutputData) SetApproval(status valueobjects.ApprovalStatus) error {
	if !status.IsValid() {
		return pkgerrors.NewValidationError("invalid approval status")
	}
	o.ApprovalStatus = status
	return nil
}

// AddComment appends to the comment thread
func (o *OutputData) AddComment(author, text string, now time.Time) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, pkgerrors.NewValidationError("comment cannot be empty")
	}
	c := Comment{ID: valueobjects.NewID(), Author: author, Text: text, CreatedAt: now}
	o.Comments = append(o.Comments, c)
	return c, nil
}

// TextContent returns the content usable as text context by downstream generators
func (o *OutputData) TextContent() string {
	if o.IsImage {
		return ""
	}
	return strings.TrimSpace(o.Content)
}
