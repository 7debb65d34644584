package repo

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"promptvc/internal/audit"
	"promptvc/internal/prompt"
	"promptvc/internal/store"
	"promptvc/internal/vcerrors"
)

// Commit stores the record (deduplicated by content hash), creates a
// commit whose parent is the current HEAD, advances HEAD, and appends a
// commit audit entry. The commit hash embeds the creation instant, so
// identical content committed twice yields two distinct commits sharing
// one prompt object.
func (r *Repository) Commit(message string, rec *prompt.Record, author, filePath string) (*prompt.Commit, error) {
	if !r.store.Exists() {
		return nil, vcerrors.NotInitialized("commit")
	}
	if message == "" {
		return nil, vcerrors.Validation("message", "commit message must not be empty")
	}
	if author == "" {
		author = "system"
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	promptHash, err := r.store.SavePrompt(rec)
	if err != nil {
		return nil, err
	}

	parent, err := r.store.Head()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	commit := &prompt.Commit{
		Hash:       prompt.CommitHash(promptHash, message, author, now, r.store.HashLength()),
		ParentHash: parent,
		Message:    message,
		Author:     author,
		Timestamp:  now,
		PromptHash: promptHash,
		FilePath:   filePath,
		Tags:       []string{},
	}

	if err := r.store.SaveCommit(commit); err != nil {
		return nil, err
	}
	if err := r.store.SetHead(commit.Hash); err != nil {
		return nil, err
	}
	if err := r.recordAudit(audit.ActionCommit, message, author, commit.Hash, promptHash, nil); err != nil {
		return nil, err
	}

	r.logger.Debug("created commit",
		zap.String("hash", commit.Hash),
		zap.String("parent", parent),
		zap.String("prompt_hash", promptHash))
	return commit, nil
}

// CommitMap normalizes raw prompt data (e.g. a parsed YAML/JSON file)
// into a record and commits it. Out-of-range numeric fields fail with a
// validation error naming the field.
func (r *Repository) CommitMap(message string, data map[string]any, author, filePath string) (*prompt.Commit, error) {
	rec, err := prompt.FromMap(data)
	if err != nil {
		return nil, err
	}
	return r.Commit(message, rec, author, filePath)
}

// Log returns the history newest-first, each commit paired with its
// prompt record. maxCount <= 0 means all. An uninitialized or empty
// repository yields an empty sequence, not an error.
func (r *Repository) Log(maxCount int) ([]prompt.Version, error) {
	if !r.store.Exists() {
		return nil, nil
	}

	hashes, err := r.store.ListCommits()
	if err != nil {
		return nil, err
	}
	if maxCount > 0 && maxCount < len(hashes) {
		hashes = hashes[:maxCount]
	}

	versions := make([]prompt.Version, 0, len(hashes))
	for _, hash := range hashes {
		commit, err := r.store.LoadCommit(hash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		rec, err := r.store.LoadPrompt(commit.PromptHash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		versions = append(versions, prompt.Version{Commit: commit, Record: rec})
	}
	return versions, nil
}

// CurrentVersion returns the HEAD version, or nil if no commits exist.
func (r *Repository) CurrentVersion() (*prompt.Version, error) {
	head, err := r.store.Head()
	if err != nil {
		return nil, err
	}
	if head == "" {
		return nil, nil
	}

	commit, err := r.store.LoadCommit(head)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, vcerrors.Corrupt("current version", "HEAD points at a missing commit "+head, nil)
		}
		return nil, err
	}
	rec, err := r.store.LoadPrompt(commit.PromptHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, vcerrors.Corrupt("current version", "commit references missing prompt object "+commit.PromptHash, nil)
		}
		return nil, err
	}
	return &prompt.Version{Commit: commit, Record: rec}, nil
}
