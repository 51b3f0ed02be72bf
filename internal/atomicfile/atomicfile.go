// Package atomicfile writes build artifacts so that a reader never sees a
// partial file, and a failed build leaves none of its artifacts behind.
package atomicfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Write writes through a temp file in the target directory and renames it
// into place. On any error the temp file is removed and path is left
// untouched.
func Write(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriterSize(tmp, 1<<20)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

type staged struct {
	final, tmp string
}

// Batch stages several artifacts next to their targets and moves them into
// place only when all of them were written.
type Batch struct {
	tag    string
	staged []staged
}

// NewBatch creates a batch. tag makes the staging names unique per run.
func NewBatch(tag string) *Batch {
	return &Batch{tag: tag}
}

// Stage returns the path an artifact for final should be written to.
func (b *Batch) Stage(final string) string {
	tmp := filepath.Join(filepath.Dir(final), "."+filepath.Base(final)+".staged-"+b.tag)
	b.staged = append(b.staged, staged{final: final, tmp: tmp})
	return tmp
}

// Commit renames every staged file onto its target. If a rename fails,
// the targets already replaced and the remaining staged files are removed.
func (b *Batch) Commit() error {
	for i, s := range b.staged {
		if err := os.Rename(s.tmp, s.final); err != nil {
			for _, done := range b.staged[:i] {
				os.Remove(done.final)
			}
			b.staged = b.staged[i:]
			b.Abort()
			return fmt.Errorf("failed to move %s into place: %w", s.final, err)
		}
	}
	b.staged = nil
	return nil
}

// Abort removes every staged file. It is safe to call after Commit.
func (b *Batch) Abort() {
	for _, s := range b.staged {
		os.Remove(s.tmp)
	}
	b.staged = nil
}
