package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentKey(t *testing.T) {
	assert.Equal(t, ContentKey("https://a.test"), ContentKey("https://a.test"))
	assert.NotEqual(t, ContentKey("https://a.test"), ContentKey("https://b.test"))
	assert.NotEqual(t, FileKey("clip.mp4", 10), FileKey("clip.mp4", 11))
	assert.Regexp(t, `^[0-9a-z]+$`, ContentKey("anything"))
}
