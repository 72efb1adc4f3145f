package memory

import (
	"context"
	"sync"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

// Store is a process-local Territory Store. Writes inside RunInTx record
// undo steps so a failed transaction leaves no trace.
type Store struct {
	mu          sync.RWMutex
	tiles       map[hex.TileID]territory.TileRecord
	colonies    map[string]territory.ColonyRecord
	ownerIndex  map[string]string
	events      []territory.CaptureEvent
	credentials map[string]ports.PlayerCredentialRecord
}

func NewStore() *Store {
	return &Store{
		tiles:       make(map[hex.TileID]territory.TileRecord),
		colonies:    make(map[string]territory.ColonyRecord),
		ownerIndex:  make(map[string]string),
		credentials: make(map[string]ports.PlayerCredentialRecord),
	}
}

type txKeyType struct{}

var txKey = txKeyType{}

type txState struct {
	store *Store
	undo  []func()
}

func (tx *txState) onRollback(fn func()) {
	if tx != nil {
		tx.undo = append(tx.undo, fn)
	}
}

func (s *Store) txFromCtx(ctx context.Context) *txState {
	if tx, ok := ctx.Value(txKey).(*txState); ok && tx.store == s {
		return tx
	}
	return nil
}

// read runs fn under the read lock unless ctx already holds the write lock.
func (s *Store) read(ctx context.Context, fn func()) {
	if s.txFromCtx(ctx) != nil {
		fn()
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

func (s *Store) write(ctx context.Context, fn func(tx *txState) error) error {
	if tx := s.txFromCtx(ctx); tx != nil {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(nil)
}

// SeedTile stores a tile outside any transaction. Intended for fixtures.
func (s *Store) SeedTile(tile territory.TileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles[tile.ID] = tile.Clone()
}
