package assets

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	rardecode "github.com/nwaples/rardecode/v2"
)

const (
	maxBundleBytes int64 = 100 * 1024 * 1024
	maxBundleFiles       = 200

	bundleFormatZip = "zip"
	bundleFormatRar = "rar"
)

var bundleImageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

type bundleEntry struct {
	name string
	data []byte
}

// handleUploadReferenceBundle ingests a zip or rar archive of reference
// images for a project: every image inside the archive is pushed to the
// object store and recorded as one reference Asset.
func (m *Module) handleUploadReferenceBundle(c *gin.Context) {
	projectID, ok := parseID(c)
	if !ok {
		return
	}
	if !m.references.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reference storage not configured"})
		return
	}

	fileHeader, err := c.FormFile("bundle")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bundle file is required"})
		return
	}
	if fileHeader.Size > 0 && fileHeader.Size > maxBundleBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("bundle exceeds %d bytes", maxBundleBytes)})
		return
	}

	entries, err := extractBundle(fileHeader)
	if err != nil {
		log.Printf("assets: extract bundle failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created := make([]Asset, 0, len(entries))
	for _, entry := range entries {
		objectName, err := m.references.Upload(c.Request.Context(), entry.data, entry.name, fmt.Sprintf("%d", projectID))
		if err != nil {
			log.Printf("assets: upload reference %q failed: %v", entry.name, err)
			continue
		}

		asset := Asset{
			ProjectID: projectID,
			FilePath:  objectName,
			Type:      TypeReference,
		}
		if err := m.db.WithContext(c.Request.Context()).Create(&asset).Error; err != nil {
			log.Printf("assets: record reference %q failed: %v", entry.name, err)
			continue
		}
		created = append(created, asset)
	}

	if len(created) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bundle contains no usable images"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"imported": len(created), "assets": created})
}

func extractBundle(fileHeader *multipart.FileHeader) ([]bundleEntry, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("assets: open bundle: %w", err)
	}
	defer src.Close()

	tmpFile, err := os.CreateTemp("", "reference-bundle-*")
	if err != nil {
		return nil, fmt.Errorf("assets: create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	written, err := io.Copy(tmpFile, io.LimitReader(src, maxBundleBytes+1))
	if err != nil {
		return nil, fmt.Errorf("assets: copy bundle: %w", err)
	}
	if written > maxBundleBytes {
		return nil, fmt.Errorf("assets: bundle exceeds %d bytes", maxBundleBytes)
	}

	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("assets: rewind temp file: %w", err)
	}
	format, err := detectBundleFormat(tmpFile, fileHeader.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("assets: rewind temp file: %w", err)
	}

	switch format {
	case bundleFormatZip:
		return extractZipBundle(tmpFile, written)
	case bundleFormatRar:
		return extractRarBundle(tmpFile)
	default:
		return nil, errors.New("assets: unsupported bundle format")
	}
}

func extractZipBundle(tmpFile *os.File, size int64) ([]bundleEntry, error) {
	reader, err := zip.NewReader(tmpFile, size)
	if err != nil {
		return nil, fmt.Errorf("assets: parse zip bundle: %w", err)
	}

	entries := make([]bundleEntry, 0, len(reader.File))
	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !isBundleImage(file.Name) {
			continue
		}
		if len(entries) >= maxBundleFiles {
			return nil, fmt.Errorf("assets: bundle contains more than %d images", maxBundleFiles)
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("assets: open entry %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxBundleBytes))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("assets: read entry %s: %w", file.Name, err)
		}
		entries = append(entries, bundleEntry{name: path.Base(file.Name), data: data})
	}

	if len(entries) == 0 {
		return nil, errors.New("assets: bundle contains no images")
	}
	return entries, nil
}

func extractRarBundle(tmpFile *os.File) ([]bundleEntry, error) {
	rr, err := rardecode.NewReader(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("assets: parse rar bundle: %w", err)
	}

	var entries []bundleEntry
	for {
		header, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("assets: read rar entry: %w", err)
		}
		if header.IsDir || !isBundleImage(header.Name) {
			if !header.IsDir {
				if _, err := io.Copy(io.Discard, rr); err != nil {
					return nil, fmt.Errorf("assets: discard rar entry: %w", err)
				}
			}
			continue
		}
		if len(entries) >= maxBundleFiles {
			return nil, fmt.Errorf("assets: bundle contains more than %d images", maxBundleFiles)
		}

		data, err := io.ReadAll(io.LimitReader(rr, maxBundleBytes))
		if err != nil {
			return nil, fmt.Errorf("assets: read rar entry %s: %w", header.Name, err)
		}
		entries = append(entries, bundleEntry{name: path.Base(header.Name), data: data})
	}

	if len(entries) == 0 {
		return nil, errors.New("assets: bundle contains no images")
	}
	return entries, nil
}

func isBundleImage(name string) bool {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if strings.HasPrefix(base, ".") {
		return false
	}
	return bundleImageExtensions[strings.ToLower(path.Ext(base))]
}

func detectBundleFormat(file *os.File, filename string) (string, error) {
	header := make([]byte, 8)
	n, err := file.Read(header)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("assets: read bundle header: %w", err)
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, []byte("PK")):
		return bundleFormatZip, nil
	case bytes.HasPrefix(header, []byte("Rar!")):
		return bundleFormatRar, nil
	}

	switch strings.ToLower(path.Ext(filename)) {
	case ".zip":
		return bundleFormatZip, nil
	case ".rar":
		return bundleFormatRar, nil
	}
	return "", errors.New("assets: bundle must be a zip or rar archive")
}
