package classifier

import (
	"context"
	"time"

	"github.com/Skelf-Research/checkstream-sub000/internal/workerpool"
	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// InferenceFunc runs a forward pass over already-tokenized input and maps
// logits to a score/label pair. Concrete model implementations and tokenizer
// code are an external collaborator (spec §1); MLClassifier only supplies
// the pool-bound, timeout-bound, contract-honoring shell around whatever
// InferenceFunc the caller wires in.
type InferenceFunc func(ctx context.Context, text string) (score float64, label string, err error)

// MLClassifier is a tier-B/C classifier: it tokenizes input (trivially, by
// delegating to infer) and runs a forward pass on a worker-pool slot so a
// slow model cannot stall the I/O reactor (spec §5).
type MLClassifier struct {
	name  string
	tier  Tier
	infer InferenceFunc
	pool  *workerpool.Pool
	// maxLength truncates input before inference; 0 means no truncation.
	maxLength int
}

var _ Classifier = (*MLClassifier)(nil)

// NewMLClassifier builds a pool-bound ML classifier. tier must be TierB or
// TierC.
func NewMLClassifier(name string, tier Tier, infer InferenceFunc, pool *workerpool.Pool, maxLength int) *MLClassifier {
	return &MLClassifier{name: name, tier: tier, infer: infer, pool: pool, maxLength: maxLength}
}

// Name returns the classifier's unique name.
func (m *MLClassifier) Name() string { return m.name }

// Tier returns the classifier's configured tier (B or C).
func (m *MLClassifier) Tier() Tier { return m.tier }

// Classify truncates text per maxLength, then runs infer on a worker-pool
// slot, translating ctx cancellation/timeout and inference failure into the
// bounded classifier error taxonomy (spec §4.1).
func (m *MLClassifier) Classify(ctx context.Context, text string) (Result, error) {
	if m.maxLength > 0 && len(text) > m.maxLength {
		text = text[:m.maxLength]
	}

	start := time.Now()
	out, err := m.pool.Do(ctx, func(ctx context.Context) (any, error) {
		score, label, err := m.infer(ctx, text)
		if err != nil {
			return nil, err
		}
		return Result{
			Score: score,
			Label: label,
			Tier:  m.tier,
		}, nil
	})
	latency := time.Since(start).Microseconds()

	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctxerr.New("classifier", "Classify", ctxerr.ErrTimeout).WithDetails(map[string]any{"classifier": m.name})
		}
		return Result{}, ctxerr.New("classifier", "Classify", ctxerr.ErrModelUnavailable).WithDetails(map[string]any{
			"classifier": m.name,
			"cause":      err.Error(),
		})
	}

	res := out.(Result)
	res.LatencyUS = latency
	return res, nil
}
