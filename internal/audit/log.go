// Package audit implements the append-only compliance log. Entries are
// serialized one JSON object per line so appends are O(1) and never
// rewrite prior content.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"promptvc/internal/vcerrors"
)

// Action identifies the kind of mutating operation an entry records.
type Action string

const (
	ActionInit     Action = "init"
	ActionCommit   Action = "commit"
	ActionCheckout Action = "checkout"
	ActionTag      Action = "tag"
	ActionImport   Action = "import"
)

// Entry is one immutable audit record. Total ordering is insertion order.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     Action         `json:"action"`
	CommitHash string         `json:"commit_hash,omitempty"`
	PromptHash string         `json:"prompt_hash,omitempty"`
	Message    string         `json:"message"`
	Author     string         `json:"author"`
	Metadata   map[string]any `json:"metadata"`
}

// Log owns an exclusive append handle on the audit file. Every append is
// flushed to disk before returning; the log is never rewritten in place.
type Log struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// Open acquires the append handle for the audit file at path, creating
// the file if it does not exist.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, vcerrors.Storage("open audit log", err)
	}
	return &Log{path: path, f: f}, nil
}

// Close releases the append handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Append writes one entry and syncs it to disk. Durability before return
// is what makes the log a usable compliance trail.
func (l *Log) Append(e Entry) error {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	data, err := json.Marshal(e)
	if err != nil {
		return vcerrors.Storage("audit append", fmt.Errorf("serializing entry: %w", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return vcerrors.Storage("audit append", fmt.Errorf("audit log is closed"))
	}
	if _, err := l.f.Write(append(data, '\n')); err != nil {
		return vcerrors.Storage("audit append", err)
	}
	if err := l.f.Sync(); err != nil {
		return vcerrors.Storage("audit append", err)
	}
	return nil
}

// Record builds an entry stamped now and appends it.
func (l *Log) Record(action Action, message, author, commitHash, promptHash string, metadata map[string]any) error {
	if author == "" {
		author = "system"
	}
	return l.Append(Entry{
		Timestamp:  time.Now(),
		Action:     action,
		CommitHash: commitHash,
		PromptHash: promptHash,
		Message:    message,
		Author:     author,
		Metadata:   metadata,
	})
}

// ReadAll returns every entry in the log, oldest first.
func (l *Log) ReadAll() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vcerrors.Storage("read audit log", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, vcerrors.Corrupt("read audit log", "malformed audit entry", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, vcerrors.Storage("read audit log", err)
	}
	return entries, nil
}
