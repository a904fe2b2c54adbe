package upload

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadWritesDecodedImage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "http://localhost:5000/images/")
	require.NoError(t, err)

	payload := []byte{0x89, 'P', 'N', 'G'}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	img, err := s.Upload(dataURL)
	require.NoError(t, err)
	assert.NotEmpty(t, img.ID)
	assert.NotEmpty(t, img.Version)
	assert.Equal(t, "http://localhost:5000/images/"+img.ID+".png", img.URL)

	stored, err := os.ReadFile(filepath.Join(dir, img.ID+".png"))
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestUploadRejectsBadInput(t *testing.T) {
	s, err := NewStore(t.TempDir(), "")
	require.NoError(t, err)

	cases := []string{
		"not a data url",
		"data:image/png,plainpayload",
		"data:text/plain;base64,aGk=",
		"data:image/png;base64,%%%",
	}
	for _, dataURL := range cases {
		_, err := s.Upload(dataURL)
		assert.Error(t, err, dataURL)
	}
}
