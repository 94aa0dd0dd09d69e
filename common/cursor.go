package common

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const HostClientId uint32 = 0

type Position struct {
	X uint16 `json:"x" msgpack:"x"`
	Y uint16 `json:"y" msgpack:"y"`
	Z uint8  `json:"z" msgpack:"z"`
}

type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

type Cursor struct {
	Id       uint32   `json:"id"`
	Position Position `json:"position"`
	Color    Color    `json:"color"`
}

var HostColor = Color{R: 255, G: 255, B: 255, A: 255}

// ParseColor accepts #rrggbb or #rrggbbaa.
func ParseColor(s string) (Color, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %s %s", s, err)
	}
	switch len(b) {
	case 3:
		return Color{R: b[0], G: b[1], B: b[2], A: 255}, nil
	case 4:
		return Color{R: b[0], G: b[1], B: b[2], A: b[3]}, nil
	}
	return Color{}, fmt.Errorf("invalid color %s", s)
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}
