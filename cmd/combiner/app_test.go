package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/snow-ghost/combiner/evaluate"
	"github.com/snow-ghost/combiner/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsTable(t *testing.T) {
	var buf bytes.Buffer
	table := newTable(&buf, "Name", "Solved", "Unsolved", "Cost")
	table.Append(statsRow("strategy", evaluate.Stats{Solved: 12, Unsolved: 1, Cost: 24.5}))
	table.Render()

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "strategy")
	assert.Contains(t, out, "24.5")
}

func TestTreeFilesRoundTrip(t *testing.T) {
	tree, err := strategy.Parse("AndThen(Tactic(simplify),Cond(size > 5.5,Tactic(c),Tactic(b)))")
	require.NoError(t, err)
	dir := t.TempDir()

	for _, format := range []string{"json", "text"} {
		path := filepath.Join(dir, "tree."+format)
		require.NoError(t, writeTree(path, format, tree))
		got, err := readTree(path)
		require.NoError(t, err)
		assert.True(t, strategy.Equal(tree, got), format)
	}

	require.NoError(t, writeTree(filepath.Join(dir, "tree.smt2"), "smt2", tree))
	data, err := os.ReadFile(filepath.Join(dir, "tree.smt2"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "(if (> size 6)")

	assert.Error(t, writeTree(filepath.Join(dir, "x"), "yaml", tree))
}
