package costcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

var sectionPrefix = []byte("section/")

// BadgerConfig configures a BadgerJournal.
type BadgerConfig struct {
	// Path is the database directory, ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool
	// SyncWrites syncs every append before it returns.
	SyncWrites bool
	Logger     *slog.Logger
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerJournal stores sections under zero-padded index keys so that a
// prefix scan yields them in index order.
type BadgerJournal struct {
	db *badger.DB
}

// OpenBadgerJournal opens the database described by cfg.
func OpenBadgerJournal(cfg BadgerConfig) (*BadgerJournal, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent journal")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create journal directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger journal: %w", err)
	}
	return &BadgerJournal{db: db}, nil
}

func sectionKey(idx int) []byte {
	return []byte(fmt.Sprintf("%s%010d", sectionPrefix, idx))
}

func (j *BadgerJournal) Load(ctx context.Context) ([]Section, error) {
	var sections []Section
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: sectionPrefix, PrefetchValues: true, PrefetchSize: 16})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var s Section
				if err := json.Unmarshal(val, &s); err != nil {
					return fmt.Errorf("%w: key %s: %v", ErrStaleJournal, item.Key(), err)
				}
				sections = append(sections, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sections, nil
}

func (j *BadgerJournal) Append(ctx context.Context, s Section) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode section %d: %w", s.Index, err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sectionKey(s.Index), data)
	})
}

func (j *BadgerJournal) Reset(ctx context.Context) error {
	var keys [][]byte
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: sectionPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan journal: %w", err)
	}
	wb := j.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("reset journal: %w", err)
		}
	}
	return wb.Flush()
}

func (j *BadgerJournal) Close() error {
	return j.db.Close()
}
