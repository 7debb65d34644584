// Package refs translates symbolic commit references into concrete
// commit hashes.
package refs

import (
	"errors"
	"strconv"
	"strings"

	"promptvc/internal/store"
	"promptvc/internal/vcerrors"
)

// Resolver resolves HEAD, HEAD~N, full hashes and unambiguous hash
// prefixes against the commit store.
type Resolver struct {
	store *store.Store
}

func New(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve translates ref into a commit hash. The resolution order is
// fixed: HEAD, HEAD~N, exact hash, then unambiguous prefix, so a literal
// hash that is also a prefix of another hash still resolves by exact
// match. Unresolvable references return a NotFound error carrying the
// original reference string.
func (r *Resolver) Resolve(ref string) (string, error) {
	if ref == "HEAD" {
		head, err := r.store.Head()
		if err != nil {
			return "", err
		}
		if head == "" {
			return "", vcerrors.NotFound("resolve", ref)
		}
		return head, nil
	}

	if rest, ok := strings.CutPrefix(ref, "HEAD~"); ok {
		steps, err := strconv.Atoi(rest)
		if err != nil || steps < 0 {
			return "", vcerrors.NotFound("resolve", ref)
		}
		commits, err := r.store.ListCommits()
		if err != nil {
			return "", err
		}
		if steps >= len(commits) {
			return "", vcerrors.NotFound("resolve", ref)
		}
		return commits[steps], nil
	}

	// Exact match wins over prefix match.
	if _, err := r.store.LoadCommit(ref); err == nil {
		return ref, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	hash, err := r.store.FindCommitByPrefix(ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", vcerrors.NotFound("resolve", ref)
		}
		return "", err
	}
	return hash, nil
}
