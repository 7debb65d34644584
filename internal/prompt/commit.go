package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Commit is a node in the append-only history. The hash embeds the
// creation instant, so committing identical content twice yields two
// distinct commits that reference the same deduplicated prompt object.
type Commit struct {
	Hash       string    `json:"hash"`
	ParentHash string    `json:"parent_hash,omitempty"`
	Message    string    `json:"message"`
	Author     string    `json:"author"`
	Timestamp  time.Time `json:"timestamp"`
	PromptHash string    `json:"prompt_hash"`
	FilePath   string    `json:"file_path,omitempty"`
	Tags       []string  `json:"tags"`
}

// ShortHash returns the abbreviated display form (first 7 characters).
func (c *Commit) ShortHash() string {
	if len(c.Hash) < 7 {
		return c.Hash
	}
	return c.Hash[:7]
}

// HasTag reports whether name is already attached to this commit.
func (c *Commit) HasTag(name string) bool {
	for _, t := range c.Tags {
		if t == name {
			return true
		}
	}
	return false
}

// CommitHash derives a commit hash from the prompt hash, message, author
// and creation instant, truncated to n hex characters.
func CommitHash(promptHash, message, author string, ts time.Time, n int) string {
	data := fmt.Sprintf("%s%s%s%s", promptHash, message, author, ts.Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(data))
	full := hex.EncodeToString(sum[:])
	if n <= 0 || n > len(full) {
		n = len(full)
	}
	return full[:n]
}

// Version pairs a commit with the prompt record it references.
type Version struct {
	Commit *Commit `json:"commit"`
	Record *Record `json:"prompt"`
}

func (v *Version) String() string {
	return fmt.Sprintf("Version %s: %s", v.Commit.ShortHash(), v.Commit.Message)
}

// Tag is a named, metadata-bearing pointer to a commit, used for
// experiment tracking. Re-tagging the same name overwrites.
type Tag struct {
	Name       string         `json:"name"`
	CommitHash string         `json:"commit_hash"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (t *Tag) String() string {
	target := t.CommitHash
	if len(target) > 7 {
		target = target[:7]
	}
	return fmt.Sprintf("Tag %q -> %s", t.Name, target)
}
