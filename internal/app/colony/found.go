package colony

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

const (
	MaxNameLength           = 40
	DefaultVisibilityRadius = 2
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// FoundUseCase creates a player's colony on a start tile. The start tile is
// always NORMAL terrain.
type FoundUseCase struct {
	TxManager        ports.TxManager
	Tiles            ports.TileRepository
	Colonies         ports.ColonyRepository
	Events           ports.EventRepository
	Publisher        ports.EventPublisher
	Terrain          ports.TerrainSource
	Logger           *slog.Logger
	VisibilityRadius int
	Now              func() time.Time
}

func (u FoundUseCase) Execute(ctx context.Context, req FoundRequest) (FoundResponse, error) {
	req.OwnerUID = strings.TrimSpace(req.OwnerUID)
	req.Name = strings.TrimSpace(req.Name)
	req.Color = strings.TrimSpace(req.Color)
	if req.OwnerUID == "" {
		return FoundResponse{}, ErrMissingOwner
	}
	if n := utf8.RuneCountInString(req.Name); n == 0 || n > MaxNameLength {
		return FoundResponse{}, ErrInvalidName
	}
	if !colorPattern.MatchString(req.Color) {
		return FoundResponse{}, ErrInvalidColor
	}
	if !req.Start.Valid() {
		return FoundResponse{}, ErrInvalidStart
	}
	if !req.Start.InBounds() {
		return FoundResponse{}, ErrStartOutOfBounds
	}

	radius := u.VisibilityRadius
	if radius <= 0 {
		radius = DefaultVisibilityRadius
	}
	now := time.Now().UTC()
	if u.Now != nil {
		now = u.Now().UTC()
	}
	startID := hex.Encode(req.Start)

	var (
		out    FoundResponse
		events []territory.CaptureEvent
	)
	err := u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := u.Colonies.GetByOwnerUID(txCtx, req.OwnerUID); err == nil {
			return ErrColonyExists
		} else if !errors.Is(err, ports.ErrNotFound) {
			return err
		}

		sample := u.Terrain.StartSample(req.Start)
		tile, err := u.Tiles.Get(txCtx, startID)
		switch {
		case errors.Is(err, ports.ErrNotFound):
			tile = territory.NewTile(req.Start, sample, now)
			tile.ControllerUID = req.OwnerUID
			tile.Color = req.Color
			tile.Version = 1
			if err := u.Tiles.Create(txCtx, tile); err != nil {
				return err
			}
		case err != nil:
			return err
		case tile.Owned():
			return ErrStartTaken
		default:
			expected := tile.Version
			tile.Type = sample.Type
			tile.ResourceDensity = sample.Density
			tile.Resources = sample.Resources
			tile.ControllerUID = req.OwnerUID
			tile.Visibility = territory.VisibilityVisible
			tile.Color = req.Color
			tile.UpdatedAt = now
			tile.Version = expected + 1
			if err := u.Tiles.UpdateWithVersion(txCtx, tile, expected); err != nil {
				return err
			}
		}

		col := territory.ColonyRecord{
			ID:               req.OwnerUID,
			OwnerUID:         req.OwnerUID,
			Name:             req.Name,
			Color:            req.Color,
			StartCoordinate:  req.Start,
			VisibilityRadius: radius,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		col.AddTile(startID)
		if err := u.Colonies.Create(txCtx, col); err != nil {
			if errors.Is(err, ports.ErrConflict) {
				return ErrColonyExists
			}
			return err
		}
		events = []territory.CaptureEvent{territory.UpdatedEvent(tile, col.ID, col.OwnerUID, now)}
		if u.Events != nil {
			if err := u.Events.Append(txCtx, events); err != nil {
				return err
			}
		}
		out = FoundResponse{Colony: col, Tile: tile}
		return nil
	})
	if err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return FoundResponse{}, ErrStartTaken
		}
		return FoundResponse{}, err
	}

	if u.Publisher != nil {
		if perr := u.Publisher.Publish(ctx, events); perr != nil {
			logger := u.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("publish colony founding failed", "colony", out.Colony.ID, "err", perr)
		}
	}
	return out, nil
}
