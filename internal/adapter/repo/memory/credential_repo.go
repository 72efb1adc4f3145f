package memory

import (
	"context"

	"hexcolony/internal/app/ports"
)

type PlayerCredentialRepo struct {
	store *Store
}

func NewPlayerCredentialRepo(store *Store) PlayerCredentialRepo {
	return PlayerCredentialRepo{store: store}
}

func (r PlayerCredentialRepo) Create(ctx context.Context, credential ports.PlayerCredentialRecord) error {
	return r.store.write(ctx, func(tx *txState) error {
		if _, exists := r.store.credentials[credential.PlayerID]; exists {
			return ports.ErrConflict
		}
		r.store.credentials[credential.PlayerID] = credential
		tx.onRollback(func() { delete(r.store.credentials, credential.PlayerID) })
		return nil
	})
}

func (r PlayerCredentialRepo) GetByPlayerID(ctx context.Context, playerID string) (ports.PlayerCredentialRecord, error) {
	var (
		cred ports.PlayerCredentialRecord
		ok   bool
	)
	r.store.read(ctx, func() {
		cred, ok = r.store.credentials[playerID]
	})
	if !ok {
		return ports.PlayerCredentialRecord{}, ports.ErrNotFound
	}
	return cred, nil
}
