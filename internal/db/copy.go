package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// CopyRow is a row that knows its own COPY column values.
type CopyRow interface {
	CopyValues() []any
}

// ChannelSource feeds pgx.CopyFrom from a channel filled by a producer
// goroutine. The channel's buffer bounds how far the producer runs ahead.
// Cancelling ctx ends the copy with ctx.Err().
type ChannelSource[T CopyRow] struct {
	ctx     context.Context
	ch      <-chan T
	current T
	sent    int64
	err     error
}

// NewChannelSource returns a source that drains ch until it is closed.
func NewChannelSource[T CopyRow](ctx context.Context, ch <-chan T) *ChannelSource[T] {
	return &ChannelSource[T]{ctx: ctx, ch: ch}
}

func (s *ChannelSource[T]) Next() bool {
	select {
	case row, ok := <-s.ch:
		if !ok {
			return false
		}
		s.current = row
		s.sent++
		return true
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		return false
	}
}

func (s *ChannelSource[T]) Values() ([]any, error) {
	return s.current.CopyValues(), nil
}

func (s *ChannelSource[T]) Err() error { return s.err }

// Sent is the number of rows handed to COPY so far.
func (s *ChannelSource[T]) Sent() int64 { return s.sent }

var _ pgx.CopyFromSource = (*ChannelSource[CopyRow])(nil)
