// Package repo implements the repository engine: the sole API surface
// through which the CLI, agent and tool server operate on a prompt
// repository. The engine orchestrates the stores, the reference resolver
// and the diff engine, and writes exactly one audit entry per mutating
// operation.
package repo

import (
	"sync"

	"go.uber.org/zap"

	"promptvc/internal/audit"
	"promptvc/internal/refs"
	"promptvc/internal/store"
)

// Repository is an explicit handle on one prompt repository. Constructed
// by opening a path, used for a logical session, then discarded. The core
// assumes a single writer; concurrent servers must serialize mutating
// operations externally.
type Repository struct {
	path     string
	store    *store.Store
	resolver *refs.Resolver
	logger   *zap.Logger

	auditMu  sync.Mutex
	auditLog *audit.Log
}

// Option customizes a Repository handle.
type Option func(*settings)

type settings struct {
	logger     *zap.Logger
	storeOpts  store.Options
}

// WithLogger attaches a zap logger; the default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithStoreOptions overrides store tuning (hash length, cache size).
func WithStoreOptions(opts store.Options) Option {
	return func(s *settings) { s.storeOpts = opts }
}

// Open returns a handle on the repository rooted at path. The repository
// need not exist yet; use Init to create it or Exists to probe.
func Open(path string, opts ...Option) (*Repository, error) {
	cfg := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(path, cfg.storeOpts)
	if err != nil {
		return nil, err
	}

	return &Repository{
		path:     path,
		store:    st,
		resolver: refs.New(st),
		logger:   cfg.logger,
	}, nil
}

// Init creates a new repository at path and records the init audit entry.
// Fails with AlreadyExists if the repository structure is already present.
func Init(path string, opts ...Option) (*Repository, error) {
	r, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.store.Init(); err != nil {
		return nil, err
	}
	if err := r.recordAudit(audit.ActionInit, "Initialized prompt repository", "system", "", "", nil); err != nil {
		return nil, err
	}
	r.logger.Info("initialized repository", zap.String("path", path))
	return r, nil
}

// Exists reports whether an initialized repository is present at the path.
func (r *Repository) Exists() bool { return r.store.Exists() }

// Path returns the repository root path.
func (r *Repository) Path() string { return r.path }

// Store exposes the underlying store for read-only collaborators (the
// bundle exporter); mutations go through the engine operations.
func (r *Repository) Store() *store.Store { return r.store }

// Close releases the audit log append handle, if one was opened.
func (r *Repository) Close() error {
	r.auditMu.Lock()
	defer r.auditMu.Unlock()
	if r.auditLog == nil {
		return nil
	}
	err := r.auditLog.Close()
	r.auditLog = nil
	return err
}

// ensureAudit lazily acquires the exclusive append handle on the audit
// file. Lazy so that a handle on a non-existent repository can be opened
// without side effects.
func (r *Repository) ensureAudit() (*audit.Log, error) {
	r.auditMu.Lock()
	defer r.auditMu.Unlock()
	if r.auditLog != nil {
		return r.auditLog, nil
	}
	l, err := audit.Open(r.store.AuditPath())
	if err != nil {
		return nil, err
	}
	r.auditLog = l
	return l, nil
}

func (r *Repository) recordAudit(action audit.Action, message, author, commitHash, promptHash string, metadata map[string]any) error {
	l, err := r.ensureAudit()
	if err != nil {
		return err
	}
	return l.Record(action, message, author, commitHash, promptHash, metadata)
}
