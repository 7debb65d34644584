package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"promptvc/internal/prompt"
	"promptvc/internal/promptfile"
	"promptvc/internal/repo"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits after the last write
// event before reading the file. Editors often emit several events per
// save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher auto-commits a prompt file every time its content changes.
type Watcher struct {
	repo     *repo.Repository
	file     string
	author   string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	// OnCommit is invoked after each successful auto-commit. Optional.
	OnCommit func(hash, message string)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithAuthor sets the author recorded on auto-commits.
func WithAuthor(author string) Option {
	return func(w *Watcher) { w.author = author }
}

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a Watcher for a single prompt file inside an initialized
// repository. The file does not have to exist yet.
func New(r *repo.Repository, file string, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("resolving path %s: %w", file, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		repo:     r,
		file:     abs,
		author:   "watcher",
		debounce: DefaultDebounce,
		watcher:  fw,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}

	// Watch the parent directory. Editors that save via rename replace
	// the inode, which breaks a watch on the file itself.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching directory: %w", err)
	}

	return w, nil
}

// Run blocks processing filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.commitIfChanged(); err != nil {
				w.logger.Error("auto-commit failed", zap.String("file", w.file), zap.Error(err))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// commitIfChanged reloads the file and commits it only when the prompt
// content differs from what HEAD already points at.
func (w *Watcher) commitIfChanged() error {
	data, err := promptfile.Load(w.file)
	if err != nil {
		return fmt.Errorf("reloading prompt file: %w", err)
	}
	rec, err := prompt.FromMap(data)
	if err != nil {
		return err
	}

	current, err := w.repo.CurrentVersion()
	if err != nil {
		return err
	}
	recHash, err := rec.HashN(w.repo.Store().HashLength())
	if err != nil {
		return err
	}
	if current != nil && current.Commit.PromptHash == recHash {
		w.logger.Debug("no content change, skipping commit", zap.String("file", w.file))
		return nil
	}

	message := fmt.Sprintf("Auto-commit: %s changed", filepath.Base(w.file))
	commit, err := w.repo.Commit(message, rec, w.author, w.file)
	if err != nil {
		return err
	}

	w.logger.Info("auto-committed prompt change",
		zap.String("file", w.file),
		zap.String("commit", commit.ShortHash()),
	)
	if w.OnCommit != nil {
		w.OnCommit(commit.Hash, message)
	}
	return nil
}
