package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.00 KB", formatSize(1024))
	assert.Equal(t, "1.50 MB", formatSize(1536*1024))
}
