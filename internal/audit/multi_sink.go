package audit

import (
	"context"
	"errors"
)

// MultiSink fans a single Append out to every underlying sink, so a
// deployment can keep a local file sink and a Redis sink simultaneously.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks into one Sink.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Append calls every underlying sink's Append and joins any errors, rather
// than stopping at the first failure, so one misbehaving sink doesn't
// silently drop records from the others.
func (m *MultiSink) Append(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Sink = (*MultiSink)(nil)
