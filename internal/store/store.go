// Package store implements the on-disk persistence layer: the repository
// layout, the content-addressable prompt object store, and the commit and
// tag stores. One JSON or YAML file per entity; the layout is a contract
// other tooling may depend on:
//
//	<repo-root>/.promptvc/
//	  HEAD                 current commit hash, or empty
//	  config.json          {version, created_at}
//	  commits/<hash>.json  one commit per file
//	  prompts/<hash>.yaml  one prompt record per file, canonical-serialized
//	  tags/<name>.json     one tag per file
//	  audit.jsonl          one audit entry per line, append-only
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"promptvc/internal/fsutil"
	"promptvc/internal/prompt"
	"promptvc/internal/vcerrors"
)

// DirName is the repository directory created under the repo root.
const DirName = ".promptvc"

const configVersion = "1.0.0"

// ErrNotFound is returned when a requested object, commit or tag is not
// present. Ambiguous prefix matches also surface as ErrNotFound; the
// caller decides how to report that.
var ErrNotFound = errors.New("not found in store")

// Options configures a Store.
type Options struct {
	// HashLength is the truncated hex length for prompt and commit
	// hashes. Zero means prompt.DefaultHashLength.
	HashLength int
	// CacheSize is the number of parsed prompt records kept in the LRU
	// read cache. Zero means 128. Prompt objects are immutable and
	// content-keyed, so cached entries never need invalidation.
	CacheSize int
}

// Store manages all persisted repository state under <repoPath>/.promptvc.
type Store struct {
	repoPath   string
	root       string
	commitsDir string
	promptsDir string
	tagsDir    string
	headFile   string
	configFile string
	auditFile  string

	hashLen int
	cache   *lru.Cache[string, *prompt.Record]
}

// Open prepares a store handle for the repository at repoPath. It does
// not touch the disk; call Init to create a repository or Exists to probe
// for one.
func Open(repoPath string, opts Options) (*Store, error) {
	if opts.HashLength == 0 {
		opts.HashLength = prompt.DefaultHashLength
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = 128
	}
	cache, err := lru.New[string, *prompt.Record](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating prompt cache: %w", err)
	}

	root := filepath.Join(repoPath, DirName)
	return &Store{
		repoPath:   repoPath,
		root:       root,
		commitsDir: filepath.Join(root, "commits"),
		promptsDir: filepath.Join(root, "prompts"),
		tagsDir:    filepath.Join(root, "tags"),
		headFile:   filepath.Join(root, "HEAD"),
		configFile: filepath.Join(root, "config.json"),
		auditFile:  filepath.Join(root, "audit.jsonl"),
		hashLen:    opts.HashLength,
		cache:      cache,
	}, nil
}

// Init creates the repository directory structure. The HEAD marker is
// written last so a crashed init never leaves a structure that Exists
// reports as a valid repository.
func (s *Store) Init() error {
	if _, err := os.Stat(s.root); err == nil {
		return vcerrors.AlreadyExists("init", s.repoPath)
	}

	for _, dir := range []string{s.root, s.commitsDir, s.promptsDir, s.tagsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return vcerrors.Storage("init", fmt.Errorf("creating %s: %w", dir, err))
		}
	}

	config := map[string]string{
		"version":    configVersion,
		"created_at": time.Now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return vcerrors.Storage("init", err)
	}
	if err := os.WriteFile(s.configFile, data, 0644); err != nil {
		return vcerrors.Storage("init", fmt.Errorf("writing config: %w", err))
	}

	f, err := os.OpenFile(s.auditFile, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return vcerrors.Storage("init", fmt.Errorf("creating audit log: %w", err))
	}
	f.Close()

	// HEAD last: its presence marks the repository as fully initialized.
	if err := os.WriteFile(s.headFile, nil, 0644); err != nil {
		return vcerrors.Storage("init", fmt.Errorf("writing HEAD: %w", err))
	}
	return nil
}

// Exists reports whether an initialized repository is present.
func (s *Store) Exists() bool {
	if _, err := os.Stat(s.root); err != nil {
		return false
	}
	_, err := os.Stat(s.headFile)
	return err == nil
}

// RepoPath returns the repository root (the directory containing .promptvc).
func (s *Store) RepoPath() string { return s.repoPath }

// Root returns the .promptvc directory path.
func (s *Store) Root() string { return s.root }

// AuditPath returns the path of the append-only audit log file.
func (s *Store) AuditPath() string { return s.auditFile }

// HashLength returns the configured truncated hash length.
func (s *Store) HashLength() int { return s.hashLen }

// Head returns the current HEAD commit hash, or "" if no commits exist.
func (s *Store) Head() (string, error) {
	data, err := os.ReadFile(s.headFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", vcerrors.Storage("head", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetHead atomically updates HEAD to point at commitHash.
func (s *Store) SetHead(commitHash string) error {
	if err := fsutil.AtomicWrite(s.headFile, []byte(commitHash), 0644); err != nil {
		return vcerrors.Storage("set head", err)
	}
	return nil
}
