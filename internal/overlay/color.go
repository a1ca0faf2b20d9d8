package overlay

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an opaque RGB color.
type Color struct {
	R, G, B uint8
}

var (
	Red   = Color{R: 0xff}
	Blue  = Color{B: 0xff}
	Cyan  = Color{G: 0xff, B: 0xff}
	Green = Color{G: 0x80}
	White = Color{R: 0xff, G: 0xff, B: 0xff}
	Black = Color{}
)

var namedColors = map[string]Color{
	"red":     Red,
	"blue":    Blue,
	"cyan":    Cyan,
	"green":   Green,
	"lime":    {G: 0xff},
	"yellow":  {R: 0xff, G: 0xff},
	"magenta": {R: 0xff, B: 0xff},
	"orange":  {R: 0xff, G: 0xa5},
	"white":   White,
	"black":   Black,
	"gray":    {R: 0x80, G: 0x80, B: 0x80},
}

// ParseColor accepts a color name or "#rrggbb".
func ParseColor(s string) (Color, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[v]; ok {
		return c, nil
	}
	if len(v) != 7 || v[0] != '#' {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	n, err := strconv.ParseUint(v[1:], 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

func (c Color) String() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
