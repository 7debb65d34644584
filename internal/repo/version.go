package repo

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"promptvc/internal/audit"
	"promptvc/internal/diff"
	"promptvc/internal/prompt"
	"promptvc/internal/store"
	"promptvc/internal/vcerrors"
)

// Diff resolves both references and compares their prompt records. An
// unresolvable reference fails with NotFound naming that reference; a
// referenced prompt object missing from the store is CorruptRepository,
// never a normal user error.
func (r *Repository) Diff(ref1, ref2 string) (*diff.Result, error) {
	hash1, err := r.resolver.Resolve(ref1)
	if err != nil {
		return nil, err
	}
	hash2, err := r.resolver.Resolve(ref2)
	if err != nil {
		return nil, err
	}

	rec1, err := r.loadRecordOf(hash1)
	if err != nil {
		return nil, err
	}
	rec2, err := r.loadRecordOf(hash2)
	if err != nil {
		return nil, err
	}

	return diff.Compare(rec1, rec2)
}

// Checkout resolves ref and moves HEAD to it. There is no working
// directory to reconcile; this is a pointer move, recorded in the audit
// trail. History is untouched.
func (r *Repository) Checkout(ref string) (*prompt.Version, error) {
	hash, err := r.resolver.Resolve(ref)
	if err != nil {
		return nil, err
	}

	commit, err := r.store.LoadCommit(hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, vcerrors.Corrupt("checkout", "resolved commit missing from store: "+hash, nil)
		}
		return nil, err
	}

	if err := r.store.SetHead(hash); err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Checked out commit %s", commit.ShortHash())
	if err := r.recordAudit(audit.ActionCheckout, msg, "system", hash, commit.PromptHash, nil); err != nil {
		return nil, err
	}

	rec, err := r.loadRecordOf(hash)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("checked out commit", zap.String("hash", hash))
	return &prompt.Version{Commit: commit, Record: rec}, nil
}

// Resolve translates a symbolic reference into a commit hash.
func (r *Repository) Resolve(ref string) (string, error) {
	return r.resolver.Resolve(ref)
}

// loadRecordOf loads the prompt record referenced by a resolved commit
// hash, mapping absence of either file to CorruptRepository.
func (r *Repository) loadRecordOf(commitHash string) (*prompt.Record, error) {
	commit, err := r.store.LoadCommit(commitHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, vcerrors.Corrupt("load version", "resolved commit missing from store: "+commitHash, nil)
		}
		return nil, err
	}
	rec, err := r.store.LoadPrompt(commit.PromptHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, vcerrors.Corrupt("load version", "commit "+commitHash+" references missing prompt object "+commit.PromptHash, nil)
		}
		return nil, err
	}
	return rec, nil
}
