// Package corpus identifies problem instances by name and materializes
// them lazily through an instance source.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/snow-ghost/combiner/core"
)

// ErrParse marks an instance that could not be materialized. Such instances
// are excluded from the corpus rather than failing the run.
var ErrParse = errors.New("instance parse error")

// DefaultExtensions are the file suffixes Discover accepts when none are given.
var DefaultExtensions = []string{".smt2"}

// Discover walks root and returns the slash-separated paths, relative to
// root, of every regular file with one of exts. The result is sorted so that
// instance order is stable across runs.
func Discover(root string, exts ...string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	var names []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExt(path, exts) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	sort.Strings(names)
	return names, nil
}

func hasExt(path string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Text is a formula carried as its source text. Backends that parse the
// text themselves (the WASM solver) consume it directly.
type Text string

func (t Text) Canonical() string { return string(t) }

// FileSource loads instances from files below Root.
type FileSource struct {
	Root string
}

func (s FileSource) Load(ctx context.Context, name string) (core.Formula, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("%w: %s: empty file", ErrParse, name)
	}
	return Text(data), nil
}
