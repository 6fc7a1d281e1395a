package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UniqueFilename returns a collision-free filename for an upload, keeping the
// original extension: <unix-nano>_<short-uuid><ext>.
func UniqueFilename(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)
}

// FileExtension returns the lowercased extension including the dot.
func FileExtension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// FileSHA256 hashes a file's contents, used to detect duplicate uploads.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
