package extract

import (
	"errors"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/parsebank-dev/parsebank/internal/model"
)

// ErrStreamConsumed is reported by Err when Rows is ranged a second time.
var ErrStreamConsumed = errors.New("row stream already consumed")

// produceFunc pushes rows to yield until it returns false or the source
// is exhausted. skip records one unit that could not be read.
type produceFunc func(yield func(model.RawRow) bool, skip func()) error

// Stream is a lazy, finite, single-pass sequence of raw rows.
type Stream struct {
	produce produceFunc
	used    atomic.Bool
	skipped atomic.Int64

	mu  sync.Mutex
	err error
}

func newStream(produce produceFunc) *Stream {
	return &Stream{produce: produce}
}

// Rows returns the row sequence. Only the first range produces rows.
func (s *Stream) Rows() iter.Seq[model.RawRow] {
	return func(yield func(model.RawRow) bool) {
		if !s.used.CompareAndSwap(false, true) {
			s.setErr(ErrStreamConsumed)
			return
		}
		if err := s.produce(yield, func() { s.skipped.Add(1) }); err != nil {
			s.setErr(err)
		}
	}
}

// Skipped returns how many rows or pages could not be read so far.
func (s *Stream) Skipped() int { return int(s.skipped.Load()) }

// Err returns the error that ended the stream early, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Collect drains the stream into a slice.
func Collect(s *Stream) ([]model.RawRow, error) {
	var rows []model.RawRow
	for row := range s.Rows() {
		rows = append(rows, row)
	}
	return rows, s.Err()
}
