package events

import (
	"context"
	"fmt"
	"strings"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/territory"
)

const (
	DefaultLimit = 500
	MaxLimit     = 2000
)

var (
	ErrMissingViewer = fmt.Errorf("%w: viewer uid is required", ports.ErrUnauthenticated)
	ErrInvalidSince  = fmt.Errorf("%w: since must not be negative", ports.ErrInvalidArgument)
)

// UseCase serves the catch-up feed a client reads after reconnecting:
// broadcast events plus direct events addressed to the viewer, oldest first.
type UseCase struct {
	Events ports.EventRepository
}

func (u UseCase) Since(ctx context.Context, req Request) (Response, error) {
	req.ViewerUID = strings.TrimSpace(req.ViewerUID)
	if req.ViewerUID == "" {
		return Response{}, ErrMissingViewer
	}
	if req.Since < 0 {
		return Response{}, ErrInvalidSince
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	// One extra row tells us whether another page exists.
	evts, err := u.Events.ListSince(ctx, req.ViewerUID, req.Since, limit+1)
	if err != nil {
		return Response{}, err
	}
	more := len(evts) > limit
	if more {
		evts = trimToTimestampBoundary(evts[:limit])
		if evts[len(evts)-1].Timestamp == evts[0].Timestamp {
			// The next page starts after this timestamp, so the page must
			// carry every event that shares it.
			evts, more, err = u.wholeTimestamp(ctx, req.ViewerUID, req.Since, evts[0].Timestamp, limit)
			if err != nil {
				return Response{}, err
			}
		}
	}
	if evts == nil {
		evts = []territory.CaptureEvent{}
	}

	cursor := req.Since
	if n := len(evts); n > 0 {
		cursor = evts[n-1].Timestamp
	}
	return Response{Events: evts, Cursor: cursor, More: more}, nil
}

// trimToTimestampBoundary drops the trailing events sharing the last
// timestamp so a cursor of "last timestamp" cannot skip siblings on the next
// page. A page made entirely of one timestamp is returned unchanged.
func trimToTimestampBoundary(evts []territory.CaptureEvent) []territory.CaptureEvent {
	last := evts[len(evts)-1].Timestamp
	i := len(evts)
	for i > 0 && evts[i-1].Timestamp == last {
		i--
	}
	if i == 0 {
		return evts
	}
	return evts[:i]
}

// wholeTimestamp returns every event at ts, the first timestamp after since,
// widening the query until the group ends.
func (u UseCase) wholeTimestamp(ctx context.Context, viewer string, since, ts int64, n int) ([]territory.CaptureEvent, bool, error) {
	for {
		n *= 2
		evts, err := u.Events.ListSince(ctx, viewer, since, n+1)
		if err != nil {
			return nil, false, err
		}
		group := 0
		for group < len(evts) && evts[group].Timestamp == ts {
			group++
		}
		if group < len(evts) {
			return evts[:group], true, nil
		}
		if len(evts) <= n {
			return evts, false, nil
		}
	}
}
