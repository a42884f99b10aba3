package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStore_AddIfWithin(t *testing.T) {
	s := NewStore(time.Hour)
	id := NewSessionID()

	total, ok := s.AddIfWithin(id, 1, 2, 3)
	assert.True(t, ok)
	assert.Equal(t, 2, total)

	// третий и четвёртый экземпляр уже больше лимита
	total, ok = s.AddIfWithin(id, 1, 2, 3)
	assert.False(t, ok)
	assert.Equal(t, 2, total)

	total, ok = s.AddIfWithin(id, 1, 1, 3)
	assert.True(t, ok)
	assert.Equal(t, 3, total)
	assert.Equal(t, map[int64]int{1: 3}, s.Items(id))
}

func TestStore_DecreaseAndRemove(t *testing.T) {
	s := NewStore(time.Hour)
	id := NewSessionID()

	s.AddIfWithin(id, 1, 2, 10)
	s.AddIfWithin(id, 2, 1, 10)

	s.Decrease(id, 1)
	assert.Equal(t, 1, s.Quantity(id, 1))

	s.Decrease(id, 1)
	assert.Equal(t, 0, s.Quantity(id, 1))
	assert.NotContains(t, s.Items(id), int64(1))

	assert.True(t, s.Remove(id, 2))
	assert.False(t, s.Remove(id, 2))
	assert.Empty(t, s.Items(id))
}

func TestStore_Expiry(t *testing.T) {
	s := NewStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	id := NewSessionID()
	s.AddIfWithin(id, 1, 1, 10)

	now = now.Add(2 * time.Minute)
	assert.Empty(t, s.Items(id), "expired cart should be dropped")
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(0)
	id := NewSessionID()
	s.AddIfWithin(id, 7, 1, 10)
	s.Clear(id)
	assert.Empty(t, s.Items(id))
}

func TestStore_ConcurrentAdd(t *testing.T) {
	s := NewStore(time.Hour)
	id := NewSessionID()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddIfWithin(id, 1, 1, 20)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, s.Quantity(id, 1))
}

func TestValidSessionID(t *testing.T) {
	assert.True(t, ValidSessionID(NewSessionID()))
	assert.False(t, ValidSessionID("not-a-uuid"))
}
