package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ImageStore writes generated images to a local asset tree and hands out
// web-style paths (/assets/...) that are persisted as Asset.FilePath.
type ImageStore struct {
	baseDir      string
	publicPrefix string
}

// NewImageStoreFromEnv initialises the store from ASSET_STORAGE_DIR,
// defaulting to ./public/assets served under /assets.
func NewImageStoreFromEnv() (*ImageStore, error) {
	dir := strings.TrimSpace(os.Getenv("ASSET_STORAGE_DIR"))
	if dir == "" {
		dir = "./public/assets"
	}
	return NewImageStore(dir)
}

// NewImageStore creates a store rooted at dir, creating it if needed.
func NewImageStore(dir string) (*ImageStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve asset dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure asset dir: %w", err)
	}
	return &ImageStore{baseDir: abs, publicPrefix: "/assets"}, nil
}

// BaseDir returns the resolved root of the asset tree.
func (s *ImageStore) BaseDir() string {
	if s == nil {
		return ""
	}
	return s.baseDir
}

// EnsureDir creates the directory for the given segments idempotently and
// returns its absolute path.
func (s *ImageStore) EnsureDir(segments ...string) (string, error) {
	if s == nil {
		return "", errors.New("storage: image store not configured")
	}
	dir := filepath.Join(append([]string{s.baseDir}, segments...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure dir: %w", err)
	}
	return dir, nil
}

// SaveImage writes data beneath the asset tree. The final segment is the file
// name; intermediate segments become directories. The returned path is the
// web-accessible form stored on Asset records.
func (s *ImageStore) SaveImage(data []byte, segments ...string) (string, error) {
	if s == nil {
		return "", errors.New("storage: image store not configured")
	}
	if len(segments) == 0 {
		return "", errors.New("storage: file name is required")
	}
	if len(data) == 0 {
		return "", errors.New("storage: image data is empty")
	}

	dirSegments := segments[:len(segments)-1]
	filename := segments[len(segments)-1]
	dir, err := s.EnsureDir(dirSegments...)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(dir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write image: %w", err)
	}

	return path.Join(append([]string{s.publicPrefix}, segments...)...), nil
}

// Load reads back the bytes for a web path previously returned by SaveImage.
func (s *ImageStore) Load(webPath string) ([]byte, error) {
	full, err := s.FullPath(webPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("storage: read image: %w", err)
	}
	return data, nil
}

// Remove deletes the stored file for a web path. A missing file is not an
// error; asset deletion is best-effort on disk.
func (s *ImageStore) Remove(webPath string) error {
	full, err := s.FullPath(webPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove image: %w", err)
	}
	return nil
}

// FullPath maps a web path back to its location on disk, rejecting anything
// that escapes the asset tree.
func (s *ImageStore) FullPath(webPath string) (string, error) {
	if s == nil {
		return "", errors.New("storage: image store not configured")
	}
	trimmed := strings.TrimSpace(webPath)
	trimmed = strings.TrimPrefix(trimmed, s.publicPrefix)
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return "", errors.New("storage: empty asset path")
	}
	full := filepath.Join(s.baseDir, filepath.FromSlash(trimmed))
	if !strings.HasPrefix(full, s.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: asset path %q escapes asset dir", webPath)
	}
	return full, nil
}

// StoredImage describes one file found by ListFolder.
type StoredImage struct {
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	CreatedAt int64  `json:"created_at"`
}

var imageExtPattern = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|gif|webp)$`)

// ListFolder enumerates image files directly under the named folder, newest
// first. A missing folder yields an empty list.
func (s *ImageStore) ListFolder(folder string) ([]StoredImage, error) {
	if s == nil {
		return nil, errors.New("storage: image store not configured")
	}
	dir := filepath.Join(s.baseDir, filepath.FromSlash(strings.Trim(folder, "/")))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []StoredImage{}, nil
		}
		return nil, fmt.Errorf("storage: list folder: %w", err)
	}

	images := make([]StoredImage, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !imageExtPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		images = append(images, StoredImage{
			Filename:  entry.Name(),
			URL:       path.Join(s.publicPrefix, folder, entry.Name()),
			CreatedAt: info.ModTime().Unix(),
		})
	}

	sort.Slice(images, func(i, j int) bool { return images[i].CreatedAt > images[j].CreatedAt })
	return images, nil
}

// Filestamp returns a millisecond timestamp string for unique file names.
func Filestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a display name and collapses everything outside [a-z0-9]
// into single dashes, so it is safe inside file names and paths.
func Slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
