package costcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/pkg/metrics"
	"github.com/snow-ghost/combiner/solver/mock"
	"github.com/snow-ghost/combiner/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(names ...string) strategy.Sequence {
	s := make(strategy.Sequence, len(names))
	for i, n := range names {
		s[i] = strategy.Atomic(n)
	}
	return s
}

func fixture() (*mock.Solver, []core.Instance) {
	solver := mock.NewSolver(map[string]mock.Rule{
		"a":    {Cost: 1, Costs: map[string]float64{"p3": 2}, Effects: map[string]float64{"size": 1}},
		"b":    {Cost: 3, Solves: map[string]core.Result{"p1": core.ResultSat, "p2": core.ResultUnsat}},
		"c":    {Cost: 5, Solves: map[string]core.Result{"p3": core.ResultSat, "p1": core.ResultSat}},
		"boom": {Fails: map[string]bool{"p2": true}, Cost: 1},
	}, "size")
	var insts []core.Instance
	for _, name := range []string{"p1", "p2", "p3"} {
		insts = append(insts, core.Instance{Name: name, Formula: mock.NewGoal(name, map[string]float64{"size": 1})})
	}
	return solver, insts
}

func newBuilder(s core.Solver, j Journal, mode Mode, m *metrics.Metrics) *Builder {
	return &Builder{Solver: s, Journal: j, Mode: mode, Penalty: 1e6, Workers: 2, Metrics: m}
}

func TestBuildSuffixVectors(t *testing.T) {
	solver, insts := fixture()
	b := newBuilder(solver, NewMemoryJournal(), ModeFull, nil)

	cache, err := b.Build(context.Background(), insts, []strategy.Sequence{seq("a", "b"), seq("a", "c")})
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	v, ok := cache.Lookup(0, "p1")
	require.True(t, ok)
	assert.Equal(t, []float64{4, 3, 0}, v)

	v, ok = cache.Lookup(1, "p3")
	require.True(t, ok)
	assert.Equal(t, []float64{7, 5, 0}, v)

	assert.False(t, cache.Solved(0, "p3"), "a,b never decides p3")
	assert.False(t, cache.Solved(1, "p2"))
	assert.Equal(t, 3.0, cache.SuffixCost(0, "p2", 1))
	assert.Equal(t, 4.0, cache.SuffixCost(0, "p2", 2))
	assert.Equal(t, 1e6, cache.SuffixCost(0, "p3", 1))
	assert.Equal(t, 1e6, cache.SuffixCost(7, "p1", 1))
}

func TestBuildStopsAtDefiniteResult(t *testing.T) {
	solver, insts := fixture()
	b := newBuilder(solver, NewMemoryJournal(), ModeFull, nil)

	cache, err := b.Build(context.Background(), insts, []strategy.Sequence{seq("b", "c")})
	require.NoError(t, err)

	v, ok := cache.Lookup(0, "p1")
	require.True(t, ok)
	assert.Equal(t, []float64{3, 0, 0}, v)
}

func TestBuildCrashIsAbsent(t *testing.T) {
	solver, insts := fixture()
	b := newBuilder(solver, NewMemoryJournal(), ModeFull, nil)

	cache, err := b.Build(context.Background(), insts, []strategy.Sequence{seq("boom", "b")})
	require.NoError(t, err)
	assert.True(t, cache.Solved(0, "p1"))
	assert.False(t, cache.Solved(0, "p2"))
}

func TestQuickModeStoresWholeCost(t *testing.T) {
	solver, insts := fixture()
	b := newBuilder(solver, NewMemoryJournal(), ModeQuick, nil)

	cache, err := b.Build(context.Background(), insts, []strategy.Sequence{seq("a", "b")})
	require.NoError(t, err)

	v, ok := cache.Lookup(0, "p2")
	require.True(t, ok)
	assert.Equal(t, []float64{4}, v)
	assert.Equal(t, 4.0, cache.SuffixCost(0, "p2", 1))
	assert.Equal(t, ModeQuick, cache.Mode())
}

func TestBuildRejectsEmptySequence(t *testing.T) {
	solver, insts := fixture()
	_, err := newBuilder(solver, NewMemoryJournal(), ModeFull, nil).Build(context.Background(), insts, []strategy.Sequence{{}})
	assert.ErrorIs(t, err, core.ErrEmptySequence)
}

func TestBuildDeterministic(t *testing.T) {
	seqs := []strategy.Sequence{seq("a", "b"), seq("a", "c"), seq("c")}
	var runs [][]Section
	for i := 0; i < 2; i++ {
		solver, insts := fixture()
		j := NewMemoryJournal()
		_, err := newBuilder(solver, j, ModeFull, nil).Build(context.Background(), insts, seqs)
		require.NoError(t, err)
		sections, err := j.Load(context.Background())
		require.NoError(t, err)
		runs = append(runs, sections)
	}
	assert.Equal(t, runs[0], runs[1])
}

func TestSuffixCostMatchesRerun(t *testing.T) {
	solver, insts := fixture()
	s := seq("a", "a", "c")
	cache, err := newBuilder(solver, NewMemoryJournal(), ModeFull, nil).Build(context.Background(), insts, []strategy.Sequence{s})
	require.NoError(t, err)

	ctx := context.Background()
	for _, inst := range insts {
		v, ok := cache.Lookup(0, inst.Name)
		if !ok {
			continue
		}
		for j := 0; j < len(s); j++ {
			f := inst.Formula
			for _, t0 := range s[:j] {
				out, err := solver.Apply(ctx, f, t0, core.Budget{})
				require.NoError(t, err)
				f = out.Next
			}
			out, err := solver.Apply(ctx, f, s[j:].Node(), core.Budget{})
			require.NoError(t, err)
			assert.Equal(t, v[j], out.Cost, "%s suffix %d", inst.Name, j)
		}
	}
}

func TestBuildResumesFromJournal(t *testing.T) {
	seqs := []strategy.Sequence{seq("a", "b"), seq("c")}
	j := NewMemoryJournal()
	m := metrics.New()

	solver, insts := fixture()
	_, err := newBuilder(solver, j, ModeFull, m).Build(context.Background(), insts, seqs[:1])
	require.NoError(t, err)

	resumed, insts := fixture()
	cache, err := newBuilder(resumed, j, ModeFull, m).Build(context.Background(), insts, seqs)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, int64(len(insts)), resumed.Calls(), "only the unsealed sequence runs")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SectionsLoaded))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SectionsSealed))
	assert.Zero(t, testutil.ToFloat64(m.JournalResets))
}

func TestBuildResetsStaleJournal(t *testing.T) {
	tests := []struct {
		name  string
		first []strategy.Sequence
		mode  Mode
	}{
		{"different sequences", []strategy.Sequence{seq("c")}, ModeFull},
		{"more sections than sequences", []strategy.Sequence{seq("a", "b"), seq("c"), seq("b")}, ModeFull},
		{"other mode", []strategy.Sequence{seq("a", "b")}, ModeQuick},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewMemoryJournal()
			solver, insts := fixture()
			_, err := newBuilder(solver, j, tt.mode, nil).Build(context.Background(), insts, tt.first)
			require.NoError(t, err)

			m := metrics.New()
			seqs := []strategy.Sequence{seq("a", "b"), seq("c")}
			cache, err := newBuilder(solver, j, ModeFull, m).Build(context.Background(), insts, seqs)
			require.NoError(t, err)
			assert.Equal(t, 2, cache.Len())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.JournalResets))

			sections, err := j.Load(context.Background())
			require.NoError(t, err)
			require.Len(t, sections, 2)
			assert.Equal(t, seqs[1].String(), sections[1].Sequence)
		})
	}
}

func TestBuildCancelled(t *testing.T) {
	solver, insts := fixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newBuilder(solver, NewMemoryJournal(), ModeFull, nil).Build(ctx, insts, []strategy.Sequence{seq("a")})
	assert.ErrorIs(t, err, context.Canceled)
}

func sampleSections() []Section {
	return []Section{
		{Index: 0, Sequence: "Tactic(a)", Fingerprint: "f0", Entries: map[string][]float64{"p1": {2, 0}}},
		{Index: 1, Sequence: "Tactic(b)", Mode: ModeQuick, Fingerprint: "f1", Entries: map[string][]float64{}},
	}
}

func exerciseJournal(t *testing.T, j Journal) {
	t.Helper()
	ctx := context.Background()

	empty, err := j.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, s := range sampleSections() {
		require.NoError(t, j.Append(ctx, s))
	}
	got, err := j.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float64{2, 0}, got[0].Entries["p1"])
	assert.Equal(t, ModeQuick, got[1].Mode)
	assert.Equal(t, "f1", got[1].Fingerprint)

	require.NoError(t, j.Reset(ctx))
	got, err = j.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileJournal(t *testing.T) {
	j, err := OpenFileJournal(filepath.Join(t.TempDir(), "cache.jsonl"))
	require.NoError(t, err)
	defer j.Close()
	exerciseJournal(t, j)
}

func TestFileJournalReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	j, err := OpenFileJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(context.Background(), sampleSections()[0]))
	require.NoError(t, j.Close())

	j, err = OpenFileJournal(path)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFileJournalTornRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	j, err := OpenFileJournal(path)
	require.NoError(t, err)
	defer j.Close()
	require.NoError(t, j.Append(context.Background(), sampleSections()[0]))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"index":1,"seq`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := j.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// the torn tail is gone, so the next append lands on a clean line
	require.NoError(t, j.Append(context.Background(), sampleSections()[1]))
	got, err = j.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFileJournalCorruptRecordIsStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n{}\n"), 0o644))
	j, err := OpenFileJournal(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Load(context.Background())
	assert.ErrorIs(t, err, ErrStaleJournal)

	solver, insts := fixture()
	cache, err := newBuilder(solver, j, ModeFull, nil).Build(context.Background(), insts, []strategy.Sequence{seq("c")})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestSQLiteJournal(t *testing.T) {
	j, err := OpenSQLiteJournal(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer j.Close()
	exerciseJournal(t, j)
}

func TestBadgerJournal(t *testing.T) {
	j, err := OpenBadgerJournal(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer j.Close()
	exerciseJournal(t, j)
}

func TestBadgerJournalRequiresPath(t *testing.T) {
	_, err := OpenBadgerJournal(BadgerConfig{})
	assert.Error(t, err)
}

func TestModeText(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("quick")))
	assert.Equal(t, ModeQuick, m)
	assert.Error(t, m.UnmarshalText([]byte("slow")))
}

func TestFingerprintIgnoresNameOrder(t *testing.T) {
	a := Fingerprint(ModeFull, seq("a"), []string{"x", "y"})
	b := Fingerprint(ModeFull, seq("a"), []string{"y", "x"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Fingerprint(ModeQuick, seq("a"), []string{"x", "y"}))
}
