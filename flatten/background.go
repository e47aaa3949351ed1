package flatten

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// BackgroundKind enumerates the background policies.
type BackgroundKind uint8

const (
	// KindBlack composites onto opaque black.
	KindBlack BackgroundKind = iota
	// KindWhite composites onto opaque white.
	KindWhite
	// KindTransparent accumulates onto a fully transparent canvas and
	// keeps the alpha channel.
	KindTransparent
	// KindCustom composites onto an opaque user-supplied colour.
	KindCustom
)

// String returns the parameter name of the kind.
func (k BackgroundKind) String() string {
	switch k {
	case KindBlack:
		return "black"
	case KindWhite:
		return "white"
	case KindTransparent:
		return "transparent"
	case KindCustom:
		return "custom"
	default:
		return "BackgroundKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Background selects what a layer stack is composited onto.
// The zero value is Black.
type Background struct {
	kind    BackgroundKind
	r, g, b float32
}

// Predefined backgrounds.
var (
	Black       = Background{kind: KindBlack}
	White       = Background{kind: KindWhite, r: 1, g: 1, b: 1}
	Transparent = Background{kind: KindTransparent}
)

// Custom returns an opaque background of the given colour. Components are
// not range-checked.
func Custom(r, g, b float32) Background {
	return Background{kind: KindCustom, r: r, g: g, b: b}
}

// Kind returns the background policy.
func (bg Background) Kind() BackgroundKind {
	return bg.kind
}

// Opaque reports whether the result is fully opaque (every kind except
// Transparent).
func (bg Background) Opaque() bool {
	return bg.kind != KindTransparent
}

// RGB returns the fill colour. Transparent reports black.
func (bg Background) RGB() (r, g, b float32) {
	return bg.r, bg.g, bg.b
}

// Channels returns the channel count of a result composited onto bg.
func (bg Background) Channels() int {
	if bg.Opaque() {
		return 3
	}
	return 4
}

func (bg Background) String() string {
	if bg.kind == KindCustom {
		return fmt.Sprintf("custom(%g,%g,%g)", bg.r, bg.g, bg.b)
	}
	return bg.kind.String()
}

// ParseBackground converts the host parameters into a Background.
// name is one of black, white, transparent or custom, matched without regard
// to case or surrounding space. r, g and b are only used for custom.
func ParseBackground(name string, r, g, b float64) (Background, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "black":
		return Black, nil
	case "white":
		return White, nil
	case "transparent":
		return Transparent, nil
	case "custom":
		return Custom(float32(r), float32(g), float32(b)), nil
	default:
		return Background{}, fmt.Errorf("%w: %q", ErrUnknownBackground, name)
	}
}

// ParseColor parses a hex colour such as "#336699", "336699" or "#369"
// into a custom background.
func ParseColor(s string) (Background, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 4 && len(s) != 7 {
		return Background{}, fmt.Errorf("%w: %q is not a hex color", ErrUnknownBackground, s)
	}
	c, err := colorful.Hex(strings.ToLower(s))
	if err != nil {
		return Background{}, fmt.Errorf("%w: %q is not a hex color", ErrUnknownBackground, s)
	}
	return Custom(float32(c.R), float32(c.G), float32(c.B)), nil
}
