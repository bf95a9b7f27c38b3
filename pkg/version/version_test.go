package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	assert.Equal(t, "dev", Version())
	assert.Contains(t, String(), "version: dev,")
	assert.Equal(t, "dnac-backup/dev", UserAgent())
	assert.False(t, IsRelease())
}

func TestIsRelease(t *testing.T) {
	defer func(v string) { version = v }(version)

	tests := []struct {
		in   string
		want bool
	}{
		{"v1.2.0", true},
		{"v1.2.0-rc.1", false},
		{"v1.2.0+meta", false},
		{"1.2.0", false},
		{"dev", false},
	}
	for _, tc := range tests {
		version = tc.in
		assert.Equal(t, tc.want, IsRelease(), tc.in)
	}
}
