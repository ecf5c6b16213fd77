package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Skelf-Research/checkstream-sub000/internal/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMLClassifier_Success(t *testing.T) {
	infer := func(_ context.Context, text string) (float64, string, error) {
		return 0.77, "toxic", nil
	}
	c := NewMLClassifier("toxicity_full", TierC, infer, workerpool.New(1), 0)

	res, err := c.Classify(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, 0.77, res.Score)
	assert.Equal(t, "toxic", res.Label)
	assert.Equal(t, TierC, res.Tier)
}

func TestMLClassifier_InferenceError(t *testing.T) {
	infer := func(_ context.Context, text string) (float64, string, error) {
		return 0, "", errors.New("model crashed")
	}
	c := NewMLClassifier("toxicity_full", TierC, infer, workerpool.New(1), 0)

	_, err := c.Classify(context.Background(), "some text")
	require.Error(t, err)
}

func TestMLClassifier_Timeout(t *testing.T) {
	infer := func(ctx context.Context, text string) (float64, string, error) {
		select {
		case <-time.After(50 * time.Millisecond):
			return 0.1, "ok", nil
		case <-ctx.Done():
			return 0, "", ctx.Err()
		}
	}
	c := NewMLClassifier("slow_model", TierC, infer, workerpool.New(1), 0)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()

	_, err := c.Classify(ctx, "some text")
	require.Error(t, err)
}

func TestMLClassifier_Truncation(t *testing.T) {
	var seen string
	infer := func(_ context.Context, text string) (float64, string, error) {
		seen = text
		return 0, "ok", nil
	}
	c := NewMLClassifier("bounded", TierB, infer, workerpool.New(1), 5)

	_, err := c.Classify(context.Background(), "0123456789")
	require.NoError(t, err)
	assert.Equal(t, "01234", seen)
}
