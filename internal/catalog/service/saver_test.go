package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/catalog/model"
)

type memStore struct {
	mu       sync.Mutex
	saves    int
	last     model.Snapshot
	deleted  []string
	err      error
	inFlight atomic.Int32
	maxPar   atomic.Int32
	delay    time.Duration
}

func (m *memStore) Load(context.Context) (model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saves == 0 {
		return model.EmptySnapshot(), nil
	}
	return m.last, nil
}

func (m *memStore) Save(_ context.Context, snap model.Snapshot) error {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxPar.Load()
		if n <= cur || m.maxPar.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(m.delay)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.last = snap
	return nil
}

func (m *memStore) DeleteTable(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func TestSaverDebouncesBursts(t *testing.T) {
	st := &memStore{}
	s := NewSaver(st, model.EmptySnapshot, 20*time.Millisecond, zerolog.Nop())
	for i := 0; i < 10; i++ {
		s.Trigger()
	}
	require.Eventually(t, func() bool { return st.saveCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, st.saveCount())
	assert.Equal(t, SaveSaved, s.State().Status)
	assert.NotNil(t, s.State().LastSaved)
}

func TestSaverSerializesWrites(t *testing.T) {
	st := &memStore{delay: 30 * time.Millisecond}
	s := NewSaver(st, model.EmptySnapshot, time.Millisecond, zerolog.Nop())
	for i := 0; i < 5; i++ {
		s.Trigger()
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, s.Flush(context.Background()))
	require.Eventually(t, func() bool { return st.inFlight.Load() == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, st.maxPar.Load())
}

func TestSaverErrorKeepsStatus(t *testing.T) {
	st := &memStore{err: errors.New("disk full")}
	s := NewSaver(st, model.EmptySnapshot, time.Millisecond, zerolog.Nop())

	err := s.Flush(context.Background())
	require.Error(t, err)
	state := s.State()
	assert.Equal(t, SaveError, state.Status)
	assert.Equal(t, "disk full", state.LastError)

	st.mu.Lock()
	st.err = nil
	st.mu.Unlock()
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, SaveSaved, s.State().Status)
	assert.Empty(t, s.State().LastError)
}

func TestNilSaverIsNoop(t *testing.T) {
	var s *Saver
	s.Trigger()
	assert.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, SaveIdle, s.State().Status)
}
