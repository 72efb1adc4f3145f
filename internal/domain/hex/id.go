package hex

import (
	"errors"
	"strconv"
	"strings"
)

// TileID is the "q#r#s" encoding of a coordinate.
type TileID string

const idSeparator = "#"

var ErrMalformedID = errors.New("malformed tile id")

// FormatError describes why a tile id could not be decoded.
type FormatError struct {
	ID     string
	Reason string
}

func (e *FormatError) Error() string {
	return ErrMalformedID.Error() + " " + strconv.Quote(e.ID) + ": " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return ErrMalformedID
}

func Encode(c Coordinate) TileID {
	var b strings.Builder
	b.Grow(16)
	b.WriteString(strconv.Itoa(c.Q))
	b.WriteString(idSeparator)
	b.WriteString(strconv.Itoa(c.R))
	b.WriteString(idSeparator)
	b.WriteString(strconv.Itoa(c.S))
	return TileID(b.String())
}

func Decode(id TileID) (Coordinate, error) {
	raw := string(id)
	parts := strings.Split(raw, idSeparator)
	if len(parts) != 3 {
		return Coordinate{}, &FormatError{ID: raw, Reason: "expected three components"}
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Coordinate{}, &FormatError{ID: raw, Reason: "bad component " + strconv.Quote(p)}
		}
		// Reject "+1", "01" and "-0" so the encoding stays bijective.
		if strconv.Itoa(n) != p {
			return Coordinate{}, &FormatError{ID: raw, Reason: "non-canonical component " + strconv.Quote(p)}
		}
		vals[i] = n
	}
	c := Coordinate{Q: vals[0], R: vals[1], S: vals[2]}
	if !c.Valid() {
		return Coordinate{}, &FormatError{ID: raw, Reason: "q+r+s must be 0"}
	}
	return c, nil
}

func (id TileID) String() string {
	return string(id)
}
