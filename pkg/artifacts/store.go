// Package artifacts persists debug artifacts from failed extractions:
// screenshots and page dumps, one directory per property, so a failed run
// can be diagnosed without re-hitting the county site.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultBaseDir is used when the config leaves the artifact directory
// empty.
const DefaultBaseDir = "th-artifacts"

var unsafeFilenameChar = regexp.MustCompile(`[^a-zA-Z0-9\-_]+`)

// Store writes artifacts under baseDir/{property-slug}/.
type Store struct {
	baseDir string
}

// NewStore creates the base directory if needed.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// BaseDir returns the root the store writes under.
func (s *Store) BaseDir() string { return s.baseDir }

// propertyDir ensures and returns the per-property subdirectory.
func (s *Store) propertyDir(propertyID string) (string, error) {
	slug := sanitize(propertyID)
	if slug == "" {
		slug = "unknown"
	}
	dir := filepath.Join(s.baseDir, slug)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating property artifact directory: %w", err)
	}
	return dir, nil
}

// SaveScreenshot writes PNG bytes for a property and returns the path. The
// filename carries a timestamp so retries do not clobber each other.
func (s *Store) SaveScreenshot(propertyID string, png []byte) (string, error) {
	return s.save(propertyID, "shot", ".png", png)
}

// SavePage writes the page HTML captured at failure time.
func (s *Store) SavePage(propertyID string, html []byte) (string, error) {
	return s.save(propertyID, "page", ".html", html)
}

func (s *Store) save(propertyID, kind, ext string, data []byte) (string, error) {
	dir, err := s.propertyDir(propertyID)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s%s", kind, time.Now().Format("20060102-150405"), ext)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("writing %s artifact: %w", kind, err)
	}
	return path, nil
}

func sanitize(s string) string {
	safe := unsafeFilenameChar.ReplaceAllString(s, "_")
	return strings.Trim(safe, "_")
}
