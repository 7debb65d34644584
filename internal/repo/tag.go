package repo

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"promptvc/internal/audit"
	"promptvc/internal/prompt"
	"promptvc/internal/store"
	"promptvc/internal/vcerrors"
)

// Tag creates or overwrites a named tag. ref defaults to HEAD when empty;
// an empty repository then fails with NoCommits. The tag name is also
// appended to the target commit's tag list (read-modify-write of the
// commit store), at most once.
func (r *Repository) Tag(name, ref string, metadata map[string]any) (*prompt.Tag, error) {
	if !r.store.Exists() {
		return nil, vcerrors.NotInitialized("tag")
	}
	if name == "" {
		return nil, vcerrors.Validation("name", "tag name must not be empty")
	}

	var commitHash string
	if ref == "" {
		head, err := r.store.Head()
		if err != nil {
			return nil, err
		}
		if head == "" {
			return nil, vcerrors.NoCommits("tag")
		}
		commitHash = head
	} else {
		hash, err := r.resolver.Resolve(ref)
		if err != nil {
			return nil, err
		}
		commitHash = hash
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	tag := &prompt.Tag{
		Name:       name,
		CommitHash: commitHash,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}
	if err := r.store.SaveTag(tag); err != nil {
		return nil, err
	}

	commit, err := r.store.LoadCommit(commitHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, vcerrors.Corrupt("tag", "tag target missing from store: "+commitHash, nil)
		}
		return nil, err
	}
	if !commit.HasTag(name) {
		commit.Tags = append(commit.Tags, name)
		if err := r.store.SaveCommit(commit); err != nil {
			return nil, err
		}
	}

	msg := fmt.Sprintf("Created tag %q", name)
	if err := r.recordAudit(audit.ActionTag, msg, "system", commitHash, "", metadata); err != nil {
		return nil, err
	}

	r.logger.Debug("created tag", zap.String("name", name), zap.String("commit", commitHash))
	return tag, nil
}

// GetTag returns the named tag, or nil if it does not exist.
func (r *Repository) GetTag(name string) (*prompt.Tag, error) {
	t, err := r.store.LoadTag(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// ListTags returns all tags. Order follows the unordered store listing.
func (r *Repository) ListTags() ([]*prompt.Tag, error) {
	names, err := r.store.ListTagNames()
	if err != nil {
		return nil, err
	}

	tags := make([]*prompt.Tag, 0, len(names))
	for _, name := range names {
		t, err := r.store.LoadTag(name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}
