package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrewind/internal/model"
)

// memRows is an in-memory RowSource with the same append-only contract as
// the sqlite-backed repository.
type memRows struct {
	mu      sync.Mutex
	rows    []model.StoreRow
	nextID  uint
	failing error
}

func newMemRows() *memRows {
	return &memRows{nextID: 1}
}

func (m *memRows) Append(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return m.failing
	}
	copied := make([]byte, len(payload))
	copy(copied, payload)
	m.rows = append(m.rows, model.StoreRow{ID: m.nextID, BatchJSON: copied})
	m.nextID++
	return nil
}

func (m *memRows) List() ([]model.StoreRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return nil, m.failing
	}
	out := make([]model.StoreRow, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *memRows) DeleteAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return m.failing
	}
	m.rows = nil
	return nil
}

func newTestStore(t *testing.T, rows RowSource) *ConversationStore {
	t.Helper()
	gate := NewGate(16)
	t.Cleanup(gate.Close)
	return NewConversationStore(rows, gate, zerolog.Nop())
}

func msg(role model.Role, ts time.Time, content string) model.Message {
	return model.Message{Role: role, Timestamp: ts, Content: content}
}

func TestAppendThenAllMessagesRoundTrips(t *testing.T) {
	st := newTestStore(t, newMemRows())
	ctx := context.Background()

	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	batch := model.Batch{
		msg(model.RoleUser, t1, "hi"),
		msg(model.RoleModel, t1.Add(time.Second), "hello"),
	}
	require.NoError(t, st.Append(ctx, batch))

	got, err := st.AllMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Message(batch), got)
}

func TestAppendRejectsEmptyBatch(t *testing.T) {
	st := newTestStore(t, newMemRows())
	err := st.Append(context.Background(), model.Batch{})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestHistoryUntilInclusiveCut(t *testing.T) {
	st := newTestStore(t, newMemRows())
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	t1, t2, t3, t4 := base, base.Add(time.Second), base.Add(2*time.Second), base.Add(3*time.Second)
	require.NoError(t, st.Append(ctx, model.Batch{
		msg(model.RoleUser, t1, "q1"),
		msg(model.RoleModel, t2, "a1"),
	}))
	require.NoError(t, st.Append(ctx, model.Batch{
		msg(model.RoleUser, t3, "q2"),
		msg(model.RoleModel, t4, "a2"),
	}))

	history, err := st.HistoryUntil(ctx, &t2)
	require.NoError(t, err)
	assert.Equal(t, []model.PromptMessage{
		{Role: model.RoleUser, Content: "q1"},
		{Role: model.RoleModel, Content: "a1"},
	}, history)

	// The cut stops the whole read, not just the current row.
	history, err = st.HistoryUntil(ctx, &t1)
	require.NoError(t, err)
	assert.Equal(t, []model.PromptMessage{
		{Role: model.RoleUser, Content: "q1"},
	}, history)
}

func TestHistoryUntilNilCutReturnsEverything(t *testing.T) {
	st := newTestStore(t, newMemRows())
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.Append(ctx, model.Batch{
		msg(model.RoleUser, base, "q1"),
		msg(model.RoleModel, base.Add(time.Second), "a1"),
	}))

	history, err := st.HistoryUntil(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestHistoryUntilIsIdempotent(t *testing.T) {
	st := newTestStore(t, newMemRows())
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	cut := base.Add(time.Second)
	require.NoError(t, st.Append(ctx, model.Batch{
		msg(model.RoleUser, base, "q1"),
		msg(model.RoleModel, cut, "a1"),
	}))

	first, err := st.HistoryUntil(ctx, &cut)
	require.NoError(t, err)
	second, err := st.HistoryUntil(ctx, &cut)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHistoryUntilDuplicateTimestampMatchesFirst(t *testing.T) {
	st := newTestStore(t, newMemRows())
	ctx := context.Background()

	shared := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.Append(ctx, model.Batch{
		msg(model.RoleUser, shared, "first"),
		msg(model.RoleModel, shared, "second"),
	}))

	history, err := st.HistoryUntil(ctx, &shared)
	require.NoError(t, err)
	assert.Equal(t, []model.PromptMessage{
		{Role: model.RoleUser, Content: "first"},
	}, history)
}

func TestMalformedRowIsSkipped(t *testing.T) {
	rows := newMemRows()
	st := newTestStore(t, rows)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.Append(ctx, model.Batch{msg(model.RoleUser, base, "q1")}))
	require.NoError(t, rows.Append([]byte("{not json")))
	require.NoError(t, st.Append(ctx, model.Batch{msg(model.RoleModel, base.Add(time.Second), "a1")}))

	got, err := st.AllMessages(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q1", got[0].Content)
	assert.Equal(t, "a1", got[1].Content)
}

func TestUnknownRoleIsSkipped(t *testing.T) {
	rows := newMemRows()
	st := newTestStore(t, rows)
	ctx := context.Background()

	payload, err := json.Marshal([]map[string]string{
		{"role": "system", "timestamp": "2025-06-01T10:00:00Z", "content": "nope"},
		{"role": "user", "timestamp": "2025-06-01T10:00:01Z", "content": "kept"},
	})
	require.NoError(t, err)
	require.NoError(t, rows.Append(payload))

	got, err := st.AllMessages(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Content)
}

func TestAppendFailureLeavesHistoryUntouched(t *testing.T) {
	rows := newMemRows()
	st := newTestStore(t, rows)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.Append(ctx, model.Batch{msg(model.RoleUser, base, "q1")}))
	before, err := st.AllMessages(ctx)
	require.NoError(t, err)

	rows.mu.Lock()
	rows.failing = errors.New("disk full")
	rows.mu.Unlock()
	err = st.Append(ctx, model.Batch{msg(model.RoleUser, base.Add(time.Second), "q2")})
	require.Error(t, err)

	rows.mu.Lock()
	rows.failing = nil
	rows.mu.Unlock()
	after, err := st.AllMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestClearThenAppendStartsFreshLog(t *testing.T) {
	st := newTestStore(t, newMemRows())
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.Append(ctx, model.Batch{msg(model.RoleUser, base, "q1")}))
	require.NoError(t, st.Clear(ctx))

	got, err := st.AllMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, st.Append(ctx, model.Batch{msg(model.RoleUser, base.Add(time.Minute), "q2")}))
	got, err = st.AllMessages(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "q2", got[0].Content)
}

func TestConcurrentAppendsProduceWholeBatchesInRowOrder(t *testing.T) {
	rows := newMemRows()
	st := newTestStore(t, rows)
	ctx := context.Background()

	const turns = 20
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := base.Add(time.Duration(i) * time.Second)
			err := st.Append(ctx, model.Batch{
				msg(model.RoleUser, ts, fmt.Sprintf("q%d", i)),
				msg(model.RoleModel, ts.Add(time.Millisecond), fmt.Sprintf("a%d", i)),
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := rows.List()
	require.NoError(t, err)
	require.Len(t, stored, turns)

	// Row ids are dense and ordered, and every row holds one whole batch:
	// a user message followed by its matching model reply.
	for idx, row := range stored {
		assert.Equal(t, uint(idx+1), row.ID)
		var batch model.Batch
		require.NoError(t, json.Unmarshal(row.BatchJSON, &batch))
		require.Len(t, batch, 2)
		assert.Equal(t, model.RoleUser, batch[0].Role)
		assert.Equal(t, model.RoleModel, batch[1].Role)
		assert.Equal(t, "q", batch[0].Content[:1])
		assert.Equal(t, "a", batch[1].Content[:1])
		assert.Equal(t, batch[0].Content[1:], batch[1].Content[1:])
	}
}

func TestStoreClosedSurfacesOnAllOperations(t *testing.T) {
	gate := NewGate(4)
	st := NewConversationStore(newMemRows(), gate, zerolog.Nop())
	gate.Close()

	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	err := st.Append(ctx, model.Batch{msg(model.RoleUser, base, "q")})
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = st.AllMessages(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = st.HistoryUntil(ctx, nil)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, st.Clear(ctx), ErrStoreClosed)
	assert.ErrorIs(t, st.Ping(ctx), ErrStoreClosed)
}
