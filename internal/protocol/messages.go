package protocol

import (
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type CaptureRequest struct {
	Q int `json:"q"`
	R int `json:"r"`
	S int `json:"s"`
}

type CaptureResponse struct {
	Success        bool                 `json:"success"`
	Tile           territory.TileRecord `json:"tile"`
	Captured       bool                 `json:"captured"`
	PreviousOwner  string               `json:"previousOwner,omitempty"`
	PreviousColony string               `json:"previousColony,omitempty"`
	Message        string               `json:"message"`
}

type BatchRequest struct {
	TileIDs []string `json:"tileIds"`
}

type BatchResponse struct {
	Success bool                   `json:"success"`
	Tiles   []territory.TileRecord `json:"tiles"`
	Count   int                    `json:"count"`
}

type FoundColonyRequest struct {
	Name  string         `json:"name"`
	Color string         `json:"color"`
	Start hex.Coordinate `json:"start"`
}

type ColonyResponse struct {
	Success bool                   `json:"success"`
	Colony  territory.ColonyRecord `json:"colony"`
	TileIDs []hex.TileID           `json:"tileIds"`
}

type ColonyCard struct {
	ID             string `json:"id"`
	OwnerUID       string `json:"ownerUid"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	TerritoryScore int    `json:"territoryScore"`
}

type ColonyCardResponse struct {
	Success bool       `json:"success"`
	Colony  ColonyCard `json:"colony"`
}

type ViewResponse struct {
	Success  bool                   `json:"success"`
	Distance int                    `json:"distance"`
	Owned    []hex.TileID           `json:"owned"`
	Frontier []territory.TileRecord `json:"frontier"`
}

type EventsResponse struct {
	Success bool      `json:"success"`
	Events  []Message `json:"events"`
	Cursor  int64     `json:"cursor"`
	More    bool      `json:"more"`
}

type RegisterResponse struct {
	PlayerID  string `json:"player_id"`
	PlayerKey string `json:"player_key"`
	IssuedAt  string `json:"issued_at"`
}

// Message is one real-time channel frame.
type Message struct {
	Kind        string               `json:"kind"`
	Timestamp   int64                `json:"timestamp"`
	Tile        territory.TileRecord `json:"tile"`
	ColonyID    string               `json:"colonyId"`
	UserID      string               `json:"userId"`
	Scope       string               `json:"scope"`
	RecipientID string               `json:"recipientId,omitempty"`
}

func MessageFromEvent(e territory.CaptureEvent) Message {
	return Message{
		Kind:        string(e.Kind),
		Timestamp:   e.Timestamp,
		Tile:        e.Tile,
		ColonyID:    e.ColonyID,
		UserID:      e.UserID,
		Scope:       string(e.Scope),
		RecipientID: e.RecipientID,
	}
}

func (m Message) Event() territory.CaptureEvent {
	return territory.CaptureEvent{
		Kind:        territory.EventKind(m.Kind),
		Timestamp:   m.Timestamp,
		Tile:        m.Tile,
		ColonyID:    m.ColonyID,
		UserID:      m.UserID,
		Scope:       territory.Scope(m.Scope),
		RecipientID: m.RecipientID,
	}
}

func MessagesFromEvents(events []territory.CaptureEvent) []Message {
	out := make([]Message, 0, len(events))
	for _, e := range events {
		out = append(out, MessageFromEvent(e))
	}
	return out
}
