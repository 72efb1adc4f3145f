package events

import "hexcolony/internal/domain/territory"

type Request struct {
	ViewerUID string
	Since     int64
	Limit     int
}

type Response struct {
	Events []territory.CaptureEvent `json:"events"`
	// Cursor is the timestamp to pass as Since on the next call.
	Cursor int64 `json:"cursor"`
	More   bool  `json:"more"`
}
