package store

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"promptvc/internal/prompt"
	"promptvc/internal/vcerrors"
)

// SavePrompt writes the record under its content hash iff not already
// present and returns the hash. Writing an already-present hash is a
// no-op, which is what deduplicates identical prompt content across
// commits.
func (s *Store) SavePrompt(r *prompt.Record) (string, error) {
	hash, err := r.HashN(s.hashLen)
	if err != nil {
		return "", err
	}

	path := s.promptPath(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	} else if !os.IsNotExist(err) {
		return "", vcerrors.Storage("save prompt", err)
	}

	data, err := yaml.Marshal(r.ToMap())
	if err != nil {
		return "", vcerrors.Storage("save prompt", fmt.Errorf("serializing record: %w", err))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", vcerrors.Storage("save prompt", err)
	}

	s.cache.Add(hash, r)
	return hash, nil
}

// LoadPrompt reads the record stored under hash. It returns ErrNotFound
// if no object exists, and a CorruptRepository error if the on-disk data
// cannot be parsed.
func (s *Store) LoadPrompt(hash string) (*prompt.Record, error) {
	if r, ok := s.cache.Get(hash); ok {
		return r, nil
	}

	data, err := os.ReadFile(s.promptPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, vcerrors.Storage("load prompt", err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, vcerrors.Corrupt("load prompt", fmt.Sprintf("malformed prompt object %s", hash), err)
	}
	r, err := prompt.FromMap(m)
	if err != nil {
		return nil, vcerrors.Corrupt("load prompt", fmt.Sprintf("invalid prompt object %s", hash), err)
	}

	s.cache.Add(hash, r)
	return r, nil
}

// HasPrompt reports whether an object with the given hash exists.
func (s *Store) HasPrompt(hash string) bool {
	if hash == "" {
		return false
	}
	if _, ok := s.cache.Get(hash); ok {
		return true
	}
	_, err := os.Stat(s.promptPath(hash))
	return err == nil
}

func (s *Store) promptPath(hash string) string {
	return filepath.Join(s.promptsDir, hash+".yaml")
}
