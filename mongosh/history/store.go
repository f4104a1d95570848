// Package history keeps the shell's command history.
package history

import (
	"errors"
	"sync"
)

// ErrNoMatchingCmd is returned when no command has the requested sequence.
var ErrNoMatchingCmd = errors.New("no matching command line")

// Cmd is one history entry.
type Cmd struct {
	Text string
	Seq  uint64
}

// Store is a bounded, append-only command history. Sequence numbers start
// at 1 and are never reused, even after old entries have been trimmed.
type Store interface {
	// NextCmdSeq returns the sequence number the next AddCmd will use.
	NextCmdSeq() (uint64, error)
	// AddCmd appends a command and returns its sequence number.
	AddCmd(text string) (uint64, error)
	// Cmd returns the command with the given sequence number.
	Cmd(seq uint64) (string, error)
	// CmdsWithSeq returns the commands with from <= seq < upto.
	CmdsWithSeq(from, upto uint64) ([]Cmd, error)
	// LastCommand returns the command entered before the most recent one,
	// or "" if there is none. The most recent entry is the command being
	// handled right now.
	LastCommand() string
	Close() error
}

type memStore struct {
	mu      sync.Mutex
	cmds    []Cmd
	nextSeq uint64
	size    int
}

// NewMemStore returns a history that keeps at most size commands in
// memory. Non-positive sizes mean unbounded.
func NewMemStore(size int) Store {
	return &memStore{nextSeq: 1, size: size}
}

func (s *memStore) NextCmdSeq() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq, nil
}

func (s *memStore) AddCmd(text string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	s.cmds = append(s.cmds, Cmd{Text: text, Seq: seq})
	if s.size > 0 && len(s.cmds) > s.size {
		s.cmds = append([]Cmd(nil), s.cmds[len(s.cmds)-s.size:]...)
	}
	return seq, nil
}

func (s *memStore) Cmd(seq uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cmds {
		if c.Seq == seq {
			return c.Text, nil
		}
	}
	return "", ErrNoMatchingCmd
}

func (s *memStore) CmdsWithSeq(from, upto uint64) ([]Cmd, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cmds []Cmd
	for _, c := range s.cmds {
		if c.Seq >= from && c.Seq < upto {
			cmds = append(cmds, c)
		}
	}
	return cmds, nil
}

func (s *memStore) LastCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cmds) < 2 {
		return ""
	}
	return s.cmds[len(s.cmds)-2].Text
}

func (s *memStore) Close() error {
	return nil
}
