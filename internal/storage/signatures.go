package storage

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// SignatureStore removes signature files attached to deleted loans. Cleanup
// is best effort: the loan delete transaction has already committed by the
// time this runs, and a missing or locked file must never surface as an API
// error.
type SignatureStore interface {
	Remove(url string)
}

// DirSignatureStore stores signature files under a local directory, addressed
// by the trailing path segment of their URL.
type DirSignatureStore struct {
	Dir string
}

// NewDirSignatureStore creates a store rooted at dir
func NewDirSignatureStore(dir string) *DirSignatureStore {
	return &DirSignatureStore{Dir: dir}
}

// Remove deletes the file backing a signature URL, logging on failure
func (s *DirSignatureStore) Remove(url string) {
	if url == "" {
		return
	}
	name := filepath.Base(strings.TrimSuffix(url, "/"))
	if name == "." || name == "/" || name == ".." {
		return
	}
	path := filepath.Join(s.Dir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to remove signature file %s: %v", path, err)
	}
}
