package details

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
	"golang.org/x/image/colornames"
)

// Black is the fallback for colour values that cannot be parsed.
var Black = color.RGBA{A: 0xff}

// ParseColor parses a colour in any of the forms a toolkit reports:
// a CSS colour name in any case, "transparent", #rgb, #rrggbb,
// #rrggbbaa, 0xrrggbb or 0xrrggbbaa.
func ParseColor(s string) (color.RGBA, error) {
	value := strings.TrimSpace(s)
	lower := strings.ToLower(value)

	if lower == "transparent" {
		return color.RGBA{}, nil
	}
	if c, ok := colornames.Map[lower]; ok {
		return c, nil
	}

	digits := ""
	switch {
	case strings.HasPrefix(lower, "0x"):
		digits = lower[2:]
	case strings.HasPrefix(lower, "#"):
		if len(lower) == 4 || len(lower) == 7 {
			c, err := colorful.Hex(lower)
			if err != nil {
				return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
			}
			r, g, b := c.RGB255()
			return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
		}
		digits = lower[1:]
	default:
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}

	if len(digits) != 6 && len(digits) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	n, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(digits) == 6 {
		n = n<<8 | 0xff
	}
	return color.RGBA{
		R: uint8(n >> 24),
		G: uint8(n >> 16),
		B: uint8(n >> 8),
		A: uint8(n),
	}, nil
}

// ColorOrBlack parses s and falls back to black, logging a warning,
// when s is not a colour. It never fails.
func ColorOrBlack(s string, log *zerolog.Logger) color.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		if log != nil {
			log.Warn().Str("value", s).Err(err).Msg("Error for color, using black")
		}
		return Black
	}
	return c
}

// FormatColor renders c as #rrggbb, or #rrggbbaa when not opaque.
func FormatColor(c color.RGBA) string {
	hex := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
	if c.A == 0xff {
		return hex
	}
	return fmt.Sprintf("%s%02x", hex, c.A)
}
