package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/snow-ghost/combiner/solver/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.smt2"), "(check-sat)")
	writeFile(t, filepath.Join(root, "sub", "a.smt2"), "(check-sat)")
	writeFile(t, filepath.Join(root, "notes.txt"), "skip me")

	names, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.smt2", "sub/a.smt2"}, names)

	names, err = Discover(root, ".txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, names)

	_, err = Discover(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.smt2"), "(assert true)")
	writeFile(t, filepath.Join(root, "empty.smt2"), "  \n")
	src := FileSource{Root: root}

	f, err := src.Load(context.Background(), "ok.smt2")
	require.NoError(t, err)
	assert.Equal(t, "(assert true)", f.Canonical())

	_, err = src.Load(context.Background(), "empty.smt2")
	assert.ErrorIs(t, err, ErrParse)

	_, err = src.Load(context.Background(), "absent.smt2")
	assert.ErrorIs(t, err, ErrParse)
}

func TestStoreExcludesBrokenInstances(t *testing.T) {
	src := mock.NewCorpus().
		Add("a", map[string]float64{"size": 1}).
		Add("c", map[string]float64{"size": 3}).
		AddBroken("b")
	store, err := NewStore(src, 8, nil)
	require.NoError(t, err)

	insts, err := store.LoadAll(context.Background(), src.Names())
	require.NoError(t, err)
	require.Len(t, insts, 2)
	assert.Equal(t, "a", insts[0].Name)
	assert.Equal(t, "c", insts[1].Name)
	assert.Equal(t, 2, store.Len())

	_, err = store.Load(context.Background(), "b")
	assert.ErrorIs(t, err, ErrParse)
}

func TestStoreMemoizes(t *testing.T) {
	src := mock.NewCorpus().Add("a", nil)
	store, err := NewStore(src, 1, nil)
	require.NoError(t, err)

	first, err := store.Load(context.Background(), "a")
	require.NoError(t, err)
	second, err := store.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.Same(t, first.Formula, second.Formula)
}

func TestStoreCancelled(t *testing.T) {
	store, err := NewStore(FileSource{Root: t.TempDir()}, 1, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.LoadAll(ctx, []string{"x.smt2"})
	assert.ErrorIs(t, err, context.Canceled)
}
