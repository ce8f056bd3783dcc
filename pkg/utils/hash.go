package utils

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ContentKey hashes a canonical input (a URL) into a short cache key.
// The hash is not collision resistant.
func ContentKey(input string) string {
	return strconv.FormatUint(xxhash.Sum64String(input), 36)
}

// FileKey hashes an uploaded file identity into a cache key
func FileKey(name string, size int64) string {
	return ContentKey(name + ":" + strconv.FormatInt(size, 10))
}
