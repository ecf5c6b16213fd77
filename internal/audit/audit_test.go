package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectingSink records every Append call for assertions; the production
// sinks (file, redis) are exercised separately below.
type collectingSink struct {
	records []Record
}

func (c *collectingSink) Append(_ context.Context, rec Record) error {
	c.records = append(c.records, rec)
	return nil
}

func TestChain_AppendLinksHashes(t *testing.T) {
	sink := &collectingSink{}
	chain := NewChain(sink)

	first, err := chain.Append(Record{ID: NewID(), FinalAction: ActionPass})
	require.NoError(t, err)
	second, err := chain.Append(Record{ID: NewID(), FinalAction: ActionBlock})
	require.NoError(t, err)
	chain.Close()

	assert.Equal(t, genesisHash, first.PrevHash)
	assert.Equal(t, first.SelfHash, second.PrevHash)
	assert.NotEqual(t, first.SelfHash, second.SelfHash)

	require.Len(t, sink.records, 2)
	assert.Equal(t, first.SelfHash, sink.records[0].SelfHash)
	assert.Equal(t, second.SelfHash, sink.records[1].SelfHash)
}

func TestVerify_DetectsTamperedRecord(t *testing.T) {
	sink := &collectingSink{}
	chain := NewChain(sink)
	_, _ = chain.Append(Record{ID: NewID(), FinalAction: ActionPass})
	_, _ = chain.Append(Record{ID: NewID(), FinalAction: ActionRedact})
	_, _ = chain.Append(Record{ID: NewID(), FinalAction: ActionBlock})
	chain.Close()

	ok, bad := Verify(sink.records)
	assert.True(t, ok)
	assert.Equal(t, -1, bad)

	sink.records[1].Tenant = "tampered"
	ok, bad = Verify(sink.records)
	assert.False(t, ok)
	assert.Equal(t, 1, bad)
}

func TestVerify_EmptyChainOK(t *testing.T) {
	ok, bad := Verify(nil)
	assert.True(t, ok)
	assert.Equal(t, -1, bad)
}

func TestChain_AppendNeverBlocksEvenWhenQueueFull(t *testing.T) {
	// blockingSink blocks every Append call until release is closed, so the
	// writer goroutine never drains the queue during this test.
	release := make(chan struct{})
	sink := &blockingSink{release: release}
	chain := NewChain(sink)
	t.Cleanup(func() {
		close(release)
		chain.Close()
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultQueueSize*2; i++ {
			_, err := chain.Append(Record{ID: NewID()})
			assert.NoError(t, err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Append blocked on a full queue instead of shedding")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (b *blockingSink) Append(_ context.Context, _ Record) error {
	<-b.release
	return nil
}

func TestFileSink_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "log.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	chain := NewChain(sink)
	rec, err := chain.Append(Record{ID: NewID(), FinalAction: ActionPass})
	require.NoError(t, err)
	chain.Close()
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var got Record
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &got))
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.SelfHash, got.SelfHash)
	assert.False(t, scanner.Scan())
}

func TestRedisSink_RPushesRecord(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := NewRedisSink(client, "checkstream:audit")

	rec := Record{ID: NewID(), FinalAction: ActionRedact, SelfHash: "deadbeef"}
	require.NoError(t, sink.Append(context.Background(), rec))

	raw, err := client.LIndex(context.Background(), "checkstream:audit", 0).Result()
	require.NoError(t, err)
	var got Record
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.SelfHash, got.SelfHash)
}

func TestMultiSink_AppendsToAll(t *testing.T) {
	a := &collectingSink{}
	b := &collectingSink{}
	multi := NewMultiSink(a, b)

	rec := Record{ID: NewID()}
	require.NoError(t, multi.Append(context.Background(), rec))

	require.Len(t, a.records, 1)
	require.Len(t, b.records, 1)
	assert.Equal(t, rec.ID, a.records[0].ID)
	assert.Equal(t, rec.ID, b.records[0].ID)
}
