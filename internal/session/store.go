// Package session хранит корзины анонимных покупателей до входа в систему.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store - корзины в памяти процесса, ключ - идентификатор сессии.
// Записи без обращений дольше ttl считаются истёкшими.
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	carts map[string]*entry
}

type entry struct {
	items    map[int64]int
	lastSeen time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:   ttl,
		now:   time.Now,
		carts: make(map[string]*entry),
	}
}

// NewSessionID выдаёт новый идентификатор анонимной корзины
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID проверяет формат идентификатора
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// get возвращает живую запись; вызывается под mu
func (s *Store) get(id string, create bool) *entry {
	now := s.now()
	e, ok := s.carts[id]
	if ok && s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl {
		delete(s.carts, id)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		e = &entry{items: make(map[int64]int)}
		s.carts[id] = e
	}
	e.lastSeen = now
	return e
}

// Items возвращает копию корзины
func (s *Store) Items(id string) map[int64]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]int)
	if e := s.get(id, false); e != nil {
		for productID, qty := range e.items {
			out[productID] = qty
		}
	}
	return out
}

// Quantity количество товара в корзине
func (s *Store) Quantity(id string, productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.get(id, false); e != nil {
		return e.items[productID]
	}
	return 0
}

// AddIfWithin прибавляет quantity, если итог не превышает limit, и возвращает итог
func (s *Store) AddIfWithin(id string, productID int64, quantity, limit int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(id, true)
	total := e.items[productID] + quantity
	if total > limit {
		return e.items[productID], false
	}
	e.items[productID] = total
	return total, true
}

// Decrease уменьшает количество на 1, нулевые строки удаляются
func (s *Store) Decrease(id string, productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(id, false)
	if e == nil {
		return
	}
	if qty, ok := e.items[productID]; ok {
		if qty <= 1 {
			delete(e.items, productID)
		} else {
			e.items[productID] = qty - 1
		}
	}
}

// Remove удаляет товар из корзины
func (s *Store) Remove(id string, productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(id, false)
	if e == nil {
		return false
	}
	_, ok := e.items[productID]
	delete(e.items, productID)
	return ok
}

// Clear удаляет корзину сессии целиком
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, id)
}
