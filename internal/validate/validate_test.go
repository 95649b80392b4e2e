package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supriyameruva/filegate/internal/apperr"
)

func TestFileNameAccepted(t *testing.T) {
	allowed := DefaultAllowedExtensions()

	tests := []struct {
		raw     string
		name    string
		ext     string
	}{
		{"cat.png", "cat.png", "png"},
		{"REPORT.PDF", "REPORT.PDF", "pdf"},
		{"notes.v2.txt", "notes.v2.txt", "txt"},
		{"dir/evil.txt", "evil.txt", "txt"},
		{"..\\windows\\pic.jpg", "pic.jpg", "jpg"},
		{"/tmp/a.gif", "a.gif", "gif"},
		{"trailing.txt.", "trailing.txt", "txt"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			fo, err := FileName(tt.raw, allowed)
			require.NoError(t, err)
			assert.Equal(t, tt.name, fo.Name)
			assert.Equal(t, tt.ext, fo.Extension)
			assert.False(t, strings.ContainsAny(fo.Name, `/\`), "sanitized name must have no separators")
			assert.NotContains(t, fo.Name, "..")
		})
	}
}

func TestFileNameRejected(t *testing.T) {
	allowed := DefaultAllowedExtensions()

	tests := []struct {
		raw  string
		kind apperr.Kind
	}{
		{"", apperr.KindNoFile},
		{"   ", apperr.KindNoFile},
		{"noextension", apperr.KindBadName},
		{"archive.", apperr.KindBadName},
		{".env", apperr.KindBadName},
		{"../../", apperr.KindBadName},
		{"malware.exe", apperr.KindBadExtension},
		{"shell.sh", apperr.KindBadExtension},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := FileName(tt.raw, allowed)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestFileNameCustomAllowList(t *testing.T) {
	allowed := map[string]bool{"csv": true}

	_, err := FileName("data.csv", allowed)
	require.NoError(t, err)

	_, err = FileName("photo.png", allowed)
	assert.True(t, apperr.IsKind(err, apperr.KindBadExtension))
}
