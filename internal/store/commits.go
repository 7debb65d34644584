package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"promptvc/internal/fsutil"
	"promptvc/internal/prompt"
	"promptvc/internal/vcerrors"
)

// SaveCommit writes or overwrites a commit record keyed by its hash.
// Overwrite is intentional: attaching a tag name mutates the commit's tag
// list through this same path.
func (s *Store) SaveCommit(c *prompt.Commit) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return vcerrors.Storage("save commit", err)
	}
	if err := fsutil.AtomicWrite(s.commitPath(c.Hash), data, 0644); err != nil {
		return vcerrors.Storage("save commit", err)
	}
	return nil
}

// LoadCommit reads the commit stored under hash, or ErrNotFound.
func (s *Store) LoadCommit(hash string) (*prompt.Commit, error) {
	data, err := os.ReadFile(s.commitPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, vcerrors.Storage("load commit", err)
	}

	var c prompt.Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, vcerrors.Corrupt("load commit", fmt.Sprintf("malformed commit record %s", hash), err)
	}
	return &c, nil
}

// ListCommits returns all commit hashes newest-first. Timestamp ties are
// broken by hash so the ordering is a deterministic total order; this is
// the canonical history traversal order.
func (s *Store) ListCommits() ([]string, error) {
	entries, err := os.ReadDir(s.commitsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vcerrors.Storage("list commits", err)
	}

	commits := make([]*prompt.Commit, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		c, err := s.LoadCommit(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}

	sort.Slice(commits, func(i, j int) bool {
		if !commits[i].Timestamp.Equal(commits[j].Timestamp) {
			return commits[i].Timestamp.After(commits[j].Timestamp)
		}
		return commits[i].Hash < commits[j].Hash
	})

	hashes := make([]string, len(commits))
	for i, c := range commits {
		hashes[i] = c.Hash
	}
	return hashes, nil
}

// FindCommitByPrefix returns the single stored hash starting with prefix.
// Zero matches and multiple matches both return ErrNotFound; this layer
// does not distinguish ambiguity from absence.
func (s *Store) FindCommitByPrefix(prefix string) (string, error) {
	entries, err := os.ReadDir(s.commitsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", vcerrors.Storage("find commit", err)
	}

	var matches []string
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".json")
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	if len(matches) != 1 {
		return "", ErrNotFound
	}
	return matches[0], nil
}

func (s *Store) commitPath(hash string) string {
	return filepath.Join(s.commitsDir, hash+".json")
}
