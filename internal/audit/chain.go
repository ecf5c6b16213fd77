package audit

import (
	"context"

	"github.com/Skelf-Research/checkstream-sub000/internal/obslog"
	"github.com/Skelf-Research/checkstream-sub000/internal/obsmetrics"
	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// Sink receives finished, hash-linked records. Implementations must not
// mutate the record. Sink.Append is called from the chain's single writer
// goroutine, so a Sink never needs to serialize its own writes internally,
// but it must not block indefinitely — a slow sink back-pressures the
// bounded append queue and, once full, drops the oldest queued record
// rather than blocking the request path (spec §5, "never blocks the
// request path beyond a bounded queue").
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// defaultQueueSize bounds the in-flight append queue (spec §5, "Max audit
// log append rate... never blocks the request path beyond a bounded
// queue").
const defaultQueueSize = 1024

// Chain is the single-writer, hash-linked audit log (spec §4.8, §5). Append
// is safe to call from any request goroutine; it never blocks on the sink
// or on the bounded internal queue: when the queue is full it sheds the
// oldest unwritten record.
type Chain struct {
	sink     Sink
	queue    chan Record
	done     chan struct{}
	lastHash chan string // single-slot mailbox holding the current prevHash
}

// NewChain starts a Chain's writer goroutine against sink. The returned
// Chain must eventually be stopped with Close to drain its writer.
func NewChain(sink Sink) *Chain {
	c := &Chain{
		sink:     sink,
		queue:    make(chan Record, defaultQueueSize),
		done:     make(chan struct{}),
		lastHash: make(chan string, 1),
	}
	c.lastHash <- genesisHash
	go c.run()
	return c
}

// Append computes rec's chain linkage (PrevHash, SelfHash) against the
// chain's current head and enqueues it for the writer goroutine. The
// record's PrevHash/SelfHash fields are overwritten regardless of any
// value the caller set. If the internal queue is full, the oldest queued
// record is dropped to make room — Append itself never blocks the
// request path.
func (c *Chain) Append(rec Record) (Record, error) {
	prev := <-c.lastHash
	canonical, err := canonicalBytes(rec)
	if err != nil {
		c.lastHash <- prev
		return Record{}, ctxerr.New("audit", "Append", err)
	}
	rec.PrevHash = prev
	rec.SelfHash = selfHash(prev, canonical)
	c.lastHash <- rec.SelfHash

	select {
	case c.queue <- rec:
	default:
		select {
		case <-c.queue:
		default:
		}
		select {
		case c.queue <- rec:
		default:
		}
	}
	obsmetrics.AuditAppendsTotal.Inc()
	return rec, nil
}

// run drains the queue and writes each record to the sink, in order, for
// the lifetime of the Chain. A sink failure is logged and counted (spec
// §7: "Audit append failures are logged and counted but do not cause the
// client-facing response to fail") rather than retried or surfaced to
// the request path, which has already returned by the time this runs.
func (c *Chain) run() {
	defer close(c.done)
	for rec := range c.queue {
		if err := c.sink.Append(context.Background(), rec); err != nil {
			obsmetrics.RecordDegradation("audit", "sink_write_failed")
			obslog.Error("audit: sink append failed, record not durably persisted", "id", rec.ID, "error", err)
		}
	}
}

// Close stops accepting new records, drains what is already queued, and
// waits for the writer goroutine to finish flushing it.
func (c *Chain) Close() {
	close(c.queue)
	<-c.done
}
