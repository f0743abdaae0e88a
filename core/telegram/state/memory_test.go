package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLastWriteWins(t *testing.T) {
	s := NewMemoryStore()
	s.Set(7, TargetAdminUserID, nil, "admin")
	s.Set(7, TargetBalanceAmount, Payload{KeyUserID: int64(42)}, "user_settings")

	in, ok := s.Get(7)
	require.True(t, ok)
	assert.Equal(t, TargetBalanceAmount, in.Target)
	assert.Equal(t, "user_settings", in.BackCommand)
	id, ok := in.Payload.Int64(KeyUserID)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreClearIdempotent(t *testing.T) {
	s := NewMemoryStore()
	s.Clear(1)
	s.Set(1, TargetSupport, nil, "")
	s.Clear(1)
	s.Clear(1)
	_, ok := s.Get(1)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestMemoryStoreCopiesPayload(t *testing.T) {
	s := NewMemoryStore()
	p := Payload{KeyTaskID: "t1"}
	s.Set(1, TargetEditTaskName, p, "")
	p[KeyTaskID] = "changed"

	in, _ := s.Get(1)
	in.Payload[KeyTaskID] = "mutated"

	again, _ := s.Get(1)
	task, ok := again.Payload.String(KeyTaskID)
	require.True(t, ok)
	assert.Equal(t, "t1", task)
}

func TestMemoryStoreConcurrentUsers(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Set(id, TargetSupport, nil, "")
			s.Set(id, TargetAddSocial, nil, "")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
	in, ok := s.Get(25)
	require.True(t, ok)
	assert.Equal(t, TargetAddSocial, in.Target)
}

func TestPayloadInt64(t *testing.T) {
	p := Payload{"a": "123", "b": 5, "c": 2.5, "d": "x"}
	v, ok := p.Int64("a")
	assert.True(t, ok)
	assert.Equal(t, int64(123), v)
	v, ok = p.Int64("b")
	assert.True(t, ok)
	assert.Equal(t, int64(5), v)
	_, ok = p.Int64("c")
	assert.False(t, ok)
	_, ok = p.Int64("d")
	assert.False(t, ok)
	_, ok = p.Int64("missing")
	assert.False(t, ok)
}
