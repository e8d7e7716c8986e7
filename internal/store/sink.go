package store

import (
	"context"
	"errors"

	"github.com/nao1215/jobharvest/internal/model"
)

// Sink receives canonical records one at a time.
type Sink interface {
	Append(ctx context.Context, rec model.CanonicalRecord) error
	Close() error
}

// MultiSink appends every record to all of its sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink returns a MultiSink over sinks. Nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Append writes rec to every sink and joins their errors.
func (m *MultiSink) Append(ctx context.Context, rec model.CanonicalRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
