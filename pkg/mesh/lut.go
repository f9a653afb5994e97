package mesh

import (
	"fmt"
	"image/color"
	"slices"
)

// LookupTable maps a scalar range onto a fixed list of colors.
type LookupTable struct {
	Colors   []color.NRGBA
	Min, Max float64
}

// NewLookupTable returns a table spanning [min, max] over the given colors.
func NewLookupTable(min, max float64, colors ...color.NRGBA) *LookupTable {
	return &LookupTable{Colors: colors, Min: min, Max: max}
}

// Clone returns a copy of the table.
func (t *LookupTable) Clone() *LookupTable {
	return &LookupTable{Colors: slices.Clone(t.Colors), Min: t.Min, Max: t.Max}
}

// Map returns the color for v. Values outside the range clamp to the
// first or last entry.
func (t *LookupTable) Map(v float64) color.NRGBA {
	n := len(t.Colors)
	if n == 0 {
		return color.NRGBA{}
	}
	if n == 1 || t.Max <= t.Min || v <= t.Min {
		return t.Colors[0]
	}
	if v >= t.Max {
		return t.Colors[n-1]
	}
	i := int((v - t.Min) / (t.Max - t.Min) * float64(n))
	return t.Colors[min(i, n-1)]
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseHexColor(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 0xff}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 9:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		err = fmt.Errorf("want #RRGGBB or #RRGGBBAA")
	}
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("mesh: invalid color %q: %w", s, err)
	}
	return c, nil
}
