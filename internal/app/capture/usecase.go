package capture

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

const DefaultMaxAttempts = 3

// UseCase transfers ownership of one tile to the requester's colony. The tile
// write, both colony writes and the outbox append commit together; a lost
// version race re-runs the whole attempt with preconditions re-evaluated.
type UseCase struct {
	TxManager        ports.TxManager
	Tiles            ports.TileRepository
	Colonies         ports.ColonyRepository
	Events           ports.EventRepository
	Publisher        ports.EventPublisher
	Terrain          ports.TerrainSource
	Metrics          ports.CaptureMetrics
	Logger           *slog.Logger
	EnforceAdjacency bool
	MaxAttempts      int
	Now              func() time.Time
}

func (u UseCase) Execute(ctx context.Context, req Request) (Result, error) {
	req.RequesterUID = strings.TrimSpace(req.RequesterUID)
	if req.RequesterUID == "" {
		return Result{}, ErrMissingRequester
	}
	if !req.Target.Valid() {
		return Result{}, ErrInvalidTarget
	}
	if !req.Target.InBounds() {
		return Result{}, ErrTargetOutOfBounds
	}

	attempts := u.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	logger := u.logger()

	var (
		out Result
		err error
	)
	for i := 1; i <= attempts; i++ {
		out, err = u.attempt(ctx, req)
		if !errors.Is(err, ports.ErrConflict) {
			break
		}
		if u.Metrics != nil {
			u.Metrics.RecordConflict()
		}
		logger.Debug("capture version conflict", "requester", req.RequesterUID, "tile", hex.Encode(req.Target), "attempt", i)
	}
	if errors.Is(err, ports.ErrConflict) {
		err = &ConflictError{Reason: ReasonContended, Attempts: attempts}
	}
	if err != nil {
		if u.Metrics != nil {
			u.Metrics.RecordFailure()
		}
		return Result{}, err
	}
	if u.Metrics != nil {
		u.Metrics.RecordSuccess(out.Captured)
	}

	if u.Publisher != nil && len(out.Events) > 0 {
		if perr := u.Publisher.Publish(ctx, out.Events); perr != nil {
			logger.Warn("publish capture events failed", "tile", out.Tile.ID, "err", perr)
			if u.Metrics != nil {
				u.Metrics.RecordPublishFailure()
			}
		}
	}
	return out, nil
}

func (u UseCase) attempt(ctx context.Context, req Request) (Result, error) {
	id := hex.Encode(req.Target)
	now := u.now()

	var out Result
	err := u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		colony, err := u.Colonies.GetByOwnerUID(txCtx, req.RequesterUID)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return ErrColonyNotFound
			}
			return err
		}
		if colony.Owns(id) {
			return &ConflictError{Reason: ReasonAlreadyOwned}
		}
		if u.EnforceAdjacency && !hex.IsAdjacentToSet(req.Target, colony.TileIDs) {
			return &PreconditionError{Reason: ReasonNotAdjacent}
		}

		tile, err := u.Tiles.Get(txCtx, id)
		exists := true
		if errors.Is(err, ports.ErrNotFound) {
			exists = false
			tile = territory.NewTile(req.Target, u.Terrain.Sample(req.Target), now)
		} else if err != nil {
			return err
		}

		var previous *territory.ColonyRecord
		if exists && tile.Owned() && tile.ControllerUID != colony.ID {
			prev, err := u.Colonies.GetByOwnerUID(txCtx, tile.ControllerUID)
			switch {
			case err == nil:
				previous = &prev
			case errors.Is(err, ports.ErrNotFound):
				u.logger().Warn("tile controller has no colony; treating as unowned", "tile", id, "controller", tile.ControllerUID)
			default:
				return err
			}
		}

		tile.ControllerUID = colony.ID
		tile.Visibility = territory.VisibilityVisible
		tile.Color = colony.Color
		tile.UpdatedAt = now
		if exists {
			expected := tile.Version
			tile.Version = expected + 1
			if err := u.Tiles.UpdateWithVersion(txCtx, tile, expected); err != nil {
				return err
			}
		} else {
			tile.Version = 1
			if err := u.Tiles.Create(txCtx, tile); err != nil {
				return err
			}
		}

		if previous != nil {
			expected := previous.Version
			previous.RemoveTile(id)
			previous.Version = expected + 1
			previous.UpdatedAt = now
			if err := u.Colonies.SaveWithVersion(txCtx, *previous, expected); err != nil {
				return err
			}
		}

		expected := colony.Version
		colony.AddTile(id)
		colony.Version = expected + 1
		colony.UpdatedAt = now
		if err := u.Colonies.SaveWithVersion(txCtx, colony, expected); err != nil {
			return err
		}

		events := []territory.CaptureEvent{territory.UpdatedEvent(tile, colony.ID, colony.OwnerUID, now)}
		out = Result{Tile: tile, Message: "tile claimed"}
		if previous != nil {
			events = append(events, territory.LostEvent(tile, previous.ID, colony.OwnerUID, previous.OwnerUID, now))
			out.Captured = true
			out.PreviousOwnerUID = previous.OwnerUID
			out.PreviousColonyID = previous.ID
			out.Message = "tile captured from " + previous.Name
		}
		if u.Events != nil {
			if err := u.Events.Append(txCtx, events); err != nil {
				return err
			}
		}
		out.Events = events
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return out, nil
}

func (u UseCase) now() time.Time {
	if u.Now == nil {
		return time.Now().UTC()
	}
	return u.Now().UTC()
}

func (u UseCase) logger() *slog.Logger {
	if u.Logger == nil {
		return slog.Default()
	}
	return u.Logger
}
