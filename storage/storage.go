// Package storage keeps notes as UTF-8 text files in a single directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const Ext = ".txt"

// Error reports a failed save or load.
type Error struct {
	Op   string // "save", "load" or "list"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Store struct {
	dir string
	now func() time.Time
}

// New creates dir if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating notes directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

// SetClock overrides the time source used by DefaultName.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// DefaultName is note_YYYYMMDD_HHMMSS.txt for the current time.
func (s *Store) DefaultName() string {
	return "note_" + s.now().Format("20060102_150405") + Ext
}

// NormalizeName trims name, falls back when blank, strips any directory
// part and appends .txt exactly once. The suffix match is case-sensitive,
// like List.
func NormalizeName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		name = fallback
	}
	if !strings.HasSuffix(name, Ext) {
		name += Ext
	}
	return name
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, NormalizeName(name, s.DefaultName()))
}

// Save writes text under name (blank selects DefaultName) and returns the
// full path.
func (s *Store) Save(name, text string) (string, error) {
	p := s.path(name)
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", &Error{Op: "save", Path: p, Err: err}
	}
	if err := os.WriteFile(p, []byte(text), 0644); err != nil {
		return "", &Error{Op: "save", Path: p, Err: err}
	}
	return p, nil
}

// Load reads a note by name or absolute path. CRLF and lone CR line
// endings come back as LF.
func (s *Store) Load(name string) (string, string, error) {
	p := name
	if !filepath.IsAbs(name) {
		p = s.path(name)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", p, &Error{Op: "load", Path: p, Err: err}
	}
	return newlines.Replace(string(data)), p, nil
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// List returns note file names sorted alphabetically.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &Error{Op: "list", Path: s.dir, Err: err}
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), Ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
