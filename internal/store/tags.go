package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"promptvc/internal/fsutil"
	"promptvc/internal/prompt"
	"promptvc/internal/vcerrors"
)

// SaveTag writes a tag, overwriting any existing tag with the same name.
// Lightweight-tag semantics: re-tagging is a silent overwrite.
func (s *Store) SaveTag(t *prompt.Tag) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return vcerrors.Storage("save tag", err)
	}
	if err := fsutil.AtomicWrite(s.tagPath(t.Name), data, 0644); err != nil {
		return vcerrors.Storage("save tag", err)
	}
	return nil
}

// LoadTag reads the tag with the given name, or ErrNotFound.
func (s *Store) LoadTag(name string) (*prompt.Tag, error) {
	data, err := os.ReadFile(s.tagPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, vcerrors.Storage("load tag", err)
	}

	var t prompt.Tag
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, vcerrors.Corrupt("load tag", fmt.Sprintf("malformed tag record %s", name), err)
	}
	return &t, nil
}

// ListTagNames returns the names of all stored tags, unordered.
func (s *Store) ListTagNames() ([]string, error) {
	entries, err := os.ReadDir(s.tagsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vcerrors.Storage("list tags", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	return names, nil
}

func (s *Store) tagPath(name string) string {
	return filepath.Join(s.tagsDir, name+".json")
}
