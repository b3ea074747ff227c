// Package storage keeps applicant uploads on the local volume.
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/alohasecurity/aloha-backend/internal/apperr"
	"github.com/google/uuid"
)

// URLPrefix is where saved assets are served from.
const URLPrefix = "/uploads/"

var allowedExt = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var allowedMIME = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"application/pdf":    true,
	"application/msword": true,
	docxMIME:             true,
}

type AssetStore struct {
	dir      string
	maxBytes int64
}

func NewAssetStore(dir string, maxBytes int64) *AssetStore {
	return &AssetStore{dir: dir, maxBytes: maxBytes}
}

func (s *AssetStore) Dir() string { return s.dir }

// Save writes the upload as <field>-<uuid><ext> and returns its URL path.
func (s *AssetStore) Save(fh *multipart.FileHeader, field string) (string, error) {
	if fh == nil {
		return "", apperr.Validationf("%s is required", field)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExt[ext] {
		return "", apperr.Validation("Error: File upload only supports images and documents")
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return "", apperr.Validationf("%s exceeds the %d byte limit", field, s.maxBytes)
	}

	src, err := fh.Open()
	if err != nil {
		return "", apperr.FileSystem("failed to read upload", err)
	}
	defer src.Close()

	if !allowedMIME[detectMIME(fh, src)] {
		return "", apperr.Validation("Error: File upload only supports images and documents")
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", apperr.FileSystem("failed to read upload", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", apperr.FileSystem("failed to store upload", err)
	}

	name := fmt.Sprintf("%s-%s%s", field, uuid.NewString(), ext)
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperr.FileSystem("failed to store upload", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", apperr.FileSystem("failed to store upload", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", apperr.FileSystem("failed to store upload", err)
	}
	return URLPrefix + name, nil
}

func detectMIME(fh *multipart.FileHeader, src io.Reader) string {
	ct := fh.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(src, head)
	sniffed := http.DetectContentType(head[:n])
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	return sniffed
}

// Remove deletes the asset behind urlPath. Only the base name is used, so
// a stored path can never reach outside the uploads directory. A file that
// is already gone is not an error.
func (s *AssetStore) Remove(urlPath string) error {
	if urlPath == "" {
		return nil
	}
	base := path.Base(filepath.ToSlash(urlPath))
	if base == "." || base == "/" || base == ".." {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, base))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.FileSystem("failed to remove upload", err)
	}
	return nil
}
