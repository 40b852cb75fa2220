package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/snow-ghost/combiner/core"
)

// Store materializes instances on demand and memoizes parsed formulas.
// Formulas are immutable, so a memoized formula is shared between callers.
type Store struct {
	src    core.InstanceSource
	memo   *lru.Cache[string, core.Formula]
	logger *slog.Logger
}

// NewStore wraps src with an LRU memo holding up to size formulas.
func NewStore(src core.InstanceSource, size int, logger *slog.Logger) (*Store, error) {
	if size <= 0 {
		size = 1024
	}
	memo, err := lru.New[string, core.Formula](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create formula memo: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{src: src, memo: memo, logger: logger}, nil
}

// Load returns the named instance in its original form. Failures other than
// cancellation are reported as ErrParse.
func (s *Store) Load(ctx context.Context, name string) (core.Instance, error) {
	if f, ok := s.memo.Get(name); ok {
		return core.Instance{Name: name, Formula: f}, nil
	}
	f, err := s.src.Load(ctx, name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.Instance{}, ctxErr
		}
		if !errors.Is(err, ErrParse) {
			err = fmt.Errorf("%w: %s: %v", ErrParse, name, err)
		}
		return core.Instance{}, err
	}
	s.memo.Add(name, f)
	return core.Instance{Name: name, Formula: f}, nil
}

// LoadAll loads names in order, dropping instances that fail to parse. Only
// cancellation is returned as an error.
func (s *Store) LoadAll(ctx context.Context, names []string) ([]core.Instance, error) {
	out := make([]core.Instance, 0, len(names))
	for _, name := range names {
		inst, err := s.Load(ctx, name)
		if err != nil {
			if errors.Is(err, ErrParse) {
				s.logger.WarnContext(ctx, "excluding instance", "instance", name, "error", err)
				continue
			}
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// Len reports how many formulas are memoized.
func (s *Store) Len() int {
	return s.memo.Len()
}
