// Package supabase adapts the hosted Supabase backend: the canvases table,
// the content library, media storage and the edge functions.
package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// NewClient creates a Supabase client for the project URL and API key
func NewClient(url, key string) (*supabase.Client, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{
		Headers: map[string]string{"X-Client-Info": "canvas-backend"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return client, nil
}
