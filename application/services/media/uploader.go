package media

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"canvas-backend/application/ports"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"

	"go.uber.org/zap"
)

// Upload is a file received from the editor
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// Uploader stores uploaded files and records them on nodes
type Uploader struct {
	storage ports.ObjectStorage
	local   ports.LocalMediaStore
	config  *config.DomainConfig
	logger  *zap.Logger
}

// NewUploader creates an uploader. A nil storage keeps every file local.
func NewUploader(storage ports.ObjectStorage, local ports.LocalMediaStore, cfg *config.DomainConfig, logger *zap.Logger) *Uploader {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{storage: storage, local: local, config: cfg, logger: logger}
}

// Upload stores the file and appends it as a media sub-record of the node.
// When object storage fails the file is kept under an ephemeral local reference.
func (u *Uploader) Upload(ctx context.Context, canvas *aggregates.Canvas, nodeID string, file Upload) (entities.MediaItem, error) {
	if len(file.Data) == 0 {
		return entities.MediaItem{}, pkgerrors.NewValidationError("file is empty")
	}
	node, ok := canvas.Node(nodeID)
	if !ok {
		return entities.MediaItem{}, pkgerrors.NewNotFoundError("node")
	}

	item := entities.MediaItem{
		ID:       valueobjects.NewID(),
		Name:     file.Name,
		MimeType: file.MimeType,
		Size:     int64(len(file.Data)),
		State:    entities.AnalysisIdle,
	}
	if err := u.checkAccepts(node, item); err != nil {
		return entities.MediaItem{}, err
	}

	item.URL = u.store(ctx, nodeID, item, file.Data)

	found, err := canvas.Mutate(nodeID, func(data entities.NodeData) (entities.NodeData, error) {
		switch d := data.(type) {
		case *entities.SourceData:
			d.SourceType = valueobjects.SourceFile
			d.Files = append(d.Files, item)
			if isTextLike(item) && utf8.Valid(file.Data) {
				d.ExtractedContent = joinSections(d.ExtractedContent, string(file.Data))
				d.WordCount = len(strings.Fields(d.ExtractedContent))
			}
		case *entities.AttachmentData:
			if item.IsImage() {
				d.ActiveTab = entities.TabImage
				d.Images = append(d.Images, item)
			} else {
				d.ActiveTab = entities.TabFile
				d.Files = append(d.Files, item)
			}
		case *entities.ImageSourceData:
			if len(d.Images) >= u.config.MaxImagesPerSource {
				return nil, tooManyImages(u.config.MaxImagesPerSource)
			}
			d.Images = append(d.Images, item)
		}
		return data, nil
	})
	if err != nil {
		return entities.MediaItem{}, err
	}
	if !found {
		return entities.MediaItem{}, pkgerrors.NewNotFoundError("node")
	}
	return item, nil
}

func (u *Uploader) checkAccepts(node entities.Node, item entities.MediaItem) error {
	switch d := node.Data.(type) {
	case *entities.SourceData, *entities.AttachmentData:
		return nil
	case *entities.ImageSourceData:
		if !item.IsImage() {
			return pkgerrors.NewValidationError("image source nodes only accept images")
		}
		if len(d.Images) >= u.config.MaxImagesPerSource {
			return tooManyImages(u.config.MaxImagesPerSource)
		}
		return nil
	default:
		return pkgerrors.NewValidationError(fmt.Sprintf("%s nodes do not accept files", node.Kind)).
			WithCode(pkgerrors.CodeUnsupportedNode)
	}
}

func (u *Uploader) store(ctx context.Context, nodeID string, item entities.MediaItem, data []byte) string {
	if u.storage != nil {
		objectPath := path.Join("canvas", nodeID, item.ID+"-"+sanitizeName(item.Name))
		url, err := u.storage.Upload(ctx, objectPath, item.MimeType, bytes.NewReader(data))
		if err == nil {
			return url
		}
		u.logger.Warn("Upload failed, keeping file locally",
			zap.String("node_id", nodeID),
			zap.String("file", item.Name),
			zap.Error(err),
		)
	}
	return u.local.Put(item.Name, item.MimeType, data)
}

func tooManyImages(max int) error {
	return pkgerrors.NewValidationError(fmt.Sprintf("at most %d images per node", max)).
		WithCode(pkgerrors.CodeTooManyImages)
}

func isTextLike(item entities.MediaItem) bool {
	if strings.HasPrefix(item.MimeType, "text/") || item.MimeType == "application/json" {
		return true
	}
	switch strings.ToLower(path.Ext(item.Name)) {
	case ".txt", ".md", ".csv", ".json":
		return true
	}
	return false
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

func joinSections(existing, next string) string {
	next = strings.TrimSpace(next)
	if strings.TrimSpace(existing) == "" {
		return next
	}
	return existing + "\n\n" + next
}
