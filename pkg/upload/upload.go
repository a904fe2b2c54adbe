// Package upload is the blob-store collaborator for post and profile
// images. Clients send base64 data URLs; the store writes the decoded
// bytes to disk and hands back a public identifier and version.
package upload

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"chirpd/pkg/apperr"
)

// Image is the stored blob's public identity.
type Image struct {
	ID      string `json:"imgId"`
	Version string `json:"imgVersion"`
	URL     string `json:"url"`
}

// Store writes uploaded images under one directory.
type Store struct {
	dir     string
	baseURL string
}

// NewStore ensures the upload directory exists.
func NewStore(dir, baseURL string) (*Store, error) {
	if dir == "" {
		dir = "./.uploads"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

var extByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Upload decodes a base64 data URL and persists it. The version is a
// timestamp so clients can cache-bust stale renditions.
func (s *Store) Upload(dataURL string) (Image, error) {
	mime, raw, err := splitDataURL(dataURL)
	if err != nil {
		return Image{}, err
	}
	ext, ok := extByMIME[mime]
	if !ok {
		return Image{}, apperr.New(apperr.Validation, fmt.Sprintf("unsupported image type %q", mime))
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return Image{}, apperr.New(apperr.Validation, "image payload is not valid base64")
	}

	id := uuid.NewString()
	version := fmt.Sprintf("%d", time.Now().UTC().Unix())
	name := id + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o600); err != nil {
		return Image{}, fmt.Errorf("write image: %w", err)
	}
	return Image{ID: id, Version: version, URL: s.baseURL + "/" + name}, nil
}

func splitDataURL(dataURL string) (mime, payload string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", apperr.New(apperr.Validation, "image must be a data URL")
	}
	rest := strings.TrimPrefix(dataURL, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", apperr.New(apperr.Validation, "malformed data URL")
	}
	mime, enc, ok := strings.Cut(meta, ";")
	if !ok || enc != "base64" {
		return "", "", apperr.New(apperr.Validation, "data URL must be base64 encoded")
	}
	return mime, payload, nil
}
