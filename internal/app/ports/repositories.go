package ports

import (
	"context"
	"time"

	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

// TileRepository stores tiles keyed by their encoded id. Versions are
// optimistic-concurrency tokens: Create writes version 1 and fails with
// ErrConflict if the id exists; UpdateWithVersion fails with ErrConflict
// unless the stored version equals expectedVersion.
type TileRepository interface {
	Get(ctx context.Context, id hex.TileID) (territory.TileRecord, error)
	GetMany(ctx context.Context, ids []hex.TileID) ([]territory.TileRecord, error)
	Create(ctx context.Context, tile territory.TileRecord) error
	UpdateWithVersion(ctx context.Context, tile territory.TileRecord, expectedVersion int64) error
}

// ColonyRepository stores colonies keyed by id with an owner uid index.
type ColonyRepository interface {
	GetByID(ctx context.Context, colonyID string) (territory.ColonyRecord, error)
	GetByOwnerUID(ctx context.Context, ownerUID string) (territory.ColonyRecord, error)
	Create(ctx context.Context, colony territory.ColonyRecord) error
	SaveWithVersion(ctx context.Context, colony territory.ColonyRecord, expectedVersion int64) error
}

// EventRepository is the outbox read by reconnecting clients.
type EventRepository interface {
	Append(ctx context.Context, events []territory.CaptureEvent) error
	// ListSince returns events visible to viewerUID with Timestamp > since,
	// oldest first.
	ListSince(ctx context.Context, viewerUID string, since int64, limit int) ([]territory.CaptureEvent, error)
}

type PlayerCredentialRecord struct {
	PlayerID  string
	KeySalt   []byte
	KeyHash   []byte
	Status    string
	CreatedAt time.Time
}

type PlayerCredentialRepository interface {
	Create(ctx context.Context, credential PlayerCredentialRecord) error
	GetByPlayerID(ctx context.Context, playerID string) (PlayerCredentialRecord, error)
}
