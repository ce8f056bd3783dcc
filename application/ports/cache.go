package ports

import "encoding/json"

// ContentCache stores extraction results keyed by content hash.
// Expired entries read as absent.
type ContentCache interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, data json.RawMessage)
}
