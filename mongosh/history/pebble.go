package history

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
)

var cmdPrefix = []byte("cmd/")

type pebbleStore struct {
	mu       sync.Mutex
	db       *pebble.DB
	firstSeq uint64
	nextSeq  uint64
	size     int
}

// Open opens, or creates, a history stored in dir.
func Open(dir string, size int) (Store, error) {
	return OpenFS(vfs.Default, dir, size)
}

// OpenFS opens a history on the given filesystem; tests pass vfs.NewMem().
func OpenFS(fs vfs.FS, dir string, size int) (Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		FS:                 fs,
		FormatMajorVersion: pebble.FormatNewest,
		Logger:             quietLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	s := &pebbleStore{db: db, firstSeq: 1, nextSeq: 1, size: size}
	if err := s.loadBounds(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *pebbleStore) loadBounds() error {
	iter, err := s.db.NewIter(cmdBounds())
	if err != nil {
		return fmt.Errorf("failed to scan history: %w", err)
	}
	defer iter.Close()
	if iter.First() {
		s.firstSeq = unmarshalSeq(iter.Key())
	}
	if iter.Last() {
		s.nextSeq = unmarshalSeq(iter.Key()) + 1
	}
	return iter.Error()
}

func (s *pebbleStore) NextCmdSeq() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq, nil
}

func (s *pebbleStore) AddCmd(text string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.nextSeq
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(marshalSeq(seq), []byte(text), nil); err != nil {
		return 0, err
	}
	firstSeq := s.firstSeq
	if s.size > 0 && seq-firstSeq+1 > uint64(s.size) {
		firstSeq = seq - uint64(s.size) + 1
		if err := batch.DeleteRange(marshalSeq(s.firstSeq), marshalSeq(firstSeq), nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to store command: %w", err)
	}
	s.nextSeq = seq + 1
	s.firstSeq = firstSeq
	return seq, nil
}

func (s *pebbleStore) Cmd(seq uint64) (string, error) {
	value, closer, err := s.db.Get(marshalSeq(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNoMatchingCmd
	} else if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(value), nil
}

func (s *pebbleStore) CmdsWithSeq(from, upto uint64) ([]Cmd, error) {
	if from >= upto {
		return nil, nil
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: marshalSeq(from),
		UpperBound: marshalSeq(upto),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var cmds []Cmd
	for iter.First(); iter.Valid(); iter.Next() {
		cmds = append(cmds, Cmd{Text: string(iter.Value()), Seq: unmarshalSeq(iter.Key())})
	}
	return cmds, iter.Error()
}

func (s *pebbleStore) LastCommand() string {
	s.mu.Lock()
	seq := s.nextSeq
	s.mu.Unlock()
	if seq < 3 {
		return ""
	}
	text, err := s.Cmd(seq - 2)
	if err != nil {
		return ""
	}
	return text
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}

func cmdBounds() *pebble.IterOptions {
	upper := append([]byte(nil), cmdPrefix...)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: cmdPrefix, UpperBound: upper}
}

func marshalSeq(seq uint64) []byte {
	key := make([]byte, len(cmdPrefix)+8)
	copy(key, cmdPrefix)
	binary.BigEndian.PutUint64(key[len(cmdPrefix):], seq)
	return key
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(cmdPrefix):])
}

// quietLogger routes pebble's own chatter to debug logs so it does not
// interleave with shell output.
type quietLogger struct{}

func (quietLogger) Infof(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), slog.String("component", "pebble"))
}

func (quietLogger) Errorf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...), slog.String("component", "pebble"))
}

func (quietLogger) Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...), slog.String("component", "pebble"))
	panic(fmt.Sprintf(format, args...))
}
