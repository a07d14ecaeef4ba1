package model

import (
	"fmt"
	"image/color"
	"math/rand/v2"
	"strconv"
	"strings"
)

// FallbackColor is used when a vehicle carries a color string that cannot be parsed.
var FallbackColor = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}

// RandomColor returns a random "#rrggbb" color. A nil rng uses the global source.
func RandomColor(rng *rand.Rand) string {
	var n uint32
	if rng == nil {
		n = rand.Uint32()
	} else {
		n = rng.Uint32()
	}
	return fmt.Sprintf("#%06x", n&0xffffff)
}

// ParseColor decodes "#rgb" or "#rrggbb". Anything else yields FallbackColor
// and false.
func ParseColor(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 3 && len(s) != 6 {
		return FallbackColor, false
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return FallbackColor, false
	}
	if len(s) == 3 {
		r, g, b := uint8(n>>8&0xf), uint8(n>>4&0xf), uint8(n&0xf)
		return color.RGBA{R: r * 0x11, G: g * 0x11, B: b * 0x11, A: 0xff}, true
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, true
}
