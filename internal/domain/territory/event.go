package territory

import "time"

type EventKind string

const (
	EventTileUpdated EventKind = "TILE_UPDATED"
	EventTileLost    EventKind = "TILE_LOST"
)

type Scope string

const (
	ScopeBroadcast Scope = "broadcast"
	ScopeDirect    Scope = "direct"
)

// CaptureEvent is an ownership-change notification. Timestamp is unix millis.
type CaptureEvent struct {
	Kind        EventKind  `json:"kind"`
	Timestamp   int64      `json:"timestamp"`
	Tile        TileRecord `json:"tile"`
	ColonyID    string     `json:"colonyId"`
	UserID      string     `json:"userId"`
	Scope       Scope      `json:"scope"`
	RecipientID string     `json:"recipientId,omitempty"`
}

// VisibleTo reports whether a viewer should receive the event.
func (e CaptureEvent) VisibleTo(viewerUID string) bool {
	if e.Scope == ScopeBroadcast {
		return true
	}
	return e.RecipientID != "" && e.RecipientID == viewerUID
}

func UpdatedEvent(tile TileRecord, colonyID, userID string, at time.Time) CaptureEvent {
	return CaptureEvent{
		Kind:      EventTileUpdated,
		Timestamp: at.UnixMilli(),
		Tile:      tile,
		ColonyID:  colonyID,
		UserID:    userID,
		Scope:     ScopeBroadcast,
	}
}

func LostEvent(tile TileRecord, colonyID, userID, recipientUID string, at time.Time) CaptureEvent {
	return CaptureEvent{
		Kind:        EventTileLost,
		Timestamp:   at.UnixMilli(),
		Tile:        tile,
		ColonyID:    colonyID,
		UserID:      userID,
		Scope:       ScopeDirect,
		RecipientID: recipientUID,
	}
}
