package probe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Store publishes the current volume to readers. Readers never see a
// partially baked volume: a rebake builds a new one and swaps it in only
// on success.
type Store struct {
	cur atomic.Pointer[Volume]
	mu  sync.Mutex // serialises Rebake
}

// NewStore returns a store holding v, which may be nil.
func NewStore(v *Volume) *Store {
	s := &Store{}
	if v != nil {
		s.cur.Store(v)
	}
	return s
}

// Load returns the published volume, or nil before the first bake.
func (s *Store) Load() *Volume {
	return s.cur.Load()
}

// Rebake runs bake and publishes its volume. On error the previous volume
// stays published and the error is returned unchanged.
func (s *Store) Rebake(ctx context.Context, bake func(context.Context) (*Volume, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := bake(ctx)
	if err != nil {
		return err
	}
	if v == nil {
		return errors.New("probe: rebake returned no volume")
	}
	s.cur.Store(v)
	return nil
}
