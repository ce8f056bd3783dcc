// Package media resolves media references and handles uploads.
package media

import (
	"encoding/base64"
	"fmt"
	"strings"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/entities"
)

// LocalPrefix marks an ephemeral reference held by the local media store
const LocalPrefix = "local:"

// IsLocal reports whether a reference only exists in the running process
func IsLocal(ref string) bool {
	return strings.HasPrefix(ref, LocalPrefix)
}

// Resolver turns media references into something a remote function can fetch
type Resolver struct {
	local ports.LocalMediaStore
}

// NewResolver creates a resolver over the local media store
func NewResolver(local ports.LocalMediaStore) *Resolver {
	return &Resolver{local: local}
}

// Fetchable converts an ephemeral local reference into a data URI.
// Durable URLs are returned unchanged.
func (r *Resolver) Fetchable(ref string) (string, error) {
	if !IsLocal(ref) {
		return ref, nil
	}
	data, mimeType, err := r.bytes(ref)
	if err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Ref builds the request payload for a media item. Local items are sent inline.
func (r *Resolver) Ref(item entities.MediaItem) (ports.MediaRef, error) {
	ref := ports.MediaRef{URL: item.URL, MimeType: item.MimeType, Name: item.Name}
	if !IsLocal(item.URL) {
		return ref, nil
	}
	data, mimeType, err := r.bytes(item.URL)
	if err != nil {
		return ports.MediaRef{}, err
	}
	ref.URL = ""
	ref.Data = data
	if ref.MimeType == "" {
		ref.MimeType = mimeType
	}
	return ref, nil
}

func (r *Resolver) bytes(ref string) ([]byte, string, error) {
	if r.local == nil {
		return nil, "", fmt.Errorf("local media %s unavailable", ref)
	}
	data, mimeType, ok := r.local.Get(ref)
	if !ok {
		return nil, "", fmt.Errorf("local media %s not found", ref)
	}
	return data, mimeType, nil
}
