package colony

import (
	"fmt"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
)

var (
	ErrMissingOwner     = fmt.Errorf("%w: owner uid is required", ports.ErrUnauthenticated)
	ErrInvalidName      = fmt.Errorf("%w: name must be 1-%d characters", ports.ErrInvalidArgument, MaxNameLength)
	ErrInvalidColor     = fmt.Errorf("%w: color must look like #rrggbb", ports.ErrInvalidArgument)
	ErrInvalidStart     = fmt.Errorf("%w: start must satisfy q+r+s=0", ports.ErrInvalidArgument)
	ErrStartOutOfBounds = fmt.Errorf("%w: start coordinates must be within ±%d", ports.ErrInvalidArgument, hex.MaxComponent)
	ErrInvalidView      = fmt.Errorf("%w: distance must be between 0 and %d", ports.ErrInvalidArgument, MaxViewDistance)
	ErrColonyExists     = fmt.Errorf("%w: player already has a colony", ports.ErrAlreadyExists)
	ErrStartTaken       = fmt.Errorf("%w: start tile is owned", ports.ErrFailedPrecondition)
	ErrColonyNotFound   = fmt.Errorf("%w: colony", ports.ErrNotFound)
)
