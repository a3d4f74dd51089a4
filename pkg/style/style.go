// Package style holds the shared label styling configuration and the color
// conversion used to derive translucent fills from stroke colors.
package style

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned for color strings that are not hex, rgb() or hsl()
var ErrInvalidColor = errors.New("invalid color format")

// LabelStyle is the mutable configuration read by every rendering operation
type LabelStyle struct {
	Color         string  `json:"color" mapstructure:"color"`
	FillOpacity   float64 `json:"fill_opacity" mapstructure:"fill_opacity"`
	SelectOpacity float64 `json:"select_opacity" mapstructure:"select_opacity"`
	FontSize      float64 `json:"font_size" mapstructure:"font_size"`
	StrokeWidth   float64 `json:"stroke_width" mapstructure:"stroke_width"`
	TextGap       float64 `json:"text_gap" mapstructure:"text_gap"`
}

// Default returns the stock style: red strokes, 20% fill, 50% when selected
func Default() LabelStyle {
	return LabelStyle{
		Color:         "rgb(255, 0, 0)",
		FillOpacity:   0.2,
		SelectOpacity: 0.5,
		FontSize:      16,
		StrokeWidth:   1,
		TextGap:       6,
	}
}

// Override is a partial LabelStyle. Nil fields keep the base value, so an
// explicit zero such as a fully transparent fill survives.
type Override struct {
	Color         *string  `json:"color,omitempty"`
	FillOpacity   *float64 `json:"fill_opacity,omitempty"`
	SelectOpacity *float64 `json:"select_opacity,omitempty"`
	FontSize      *float64 `json:"font_size,omitempty"`
	StrokeWidth   *float64 `json:"stroke_width,omitempty"`
	TextGap       *float64 `json:"text_gap,omitempty"`
}

// Apply returns base with every set field of o applied on top
func (o Override) Apply(base LabelStyle) LabelStyle {
	if o.Color != nil {
		base.Color = *o.Color
	}
	if o.FillOpacity != nil {
		base.FillOpacity = *o.FillOpacity
	}
	if o.SelectOpacity != nil {
		base.SelectOpacity = *o.SelectOpacity
	}
	if o.FontSize != nil {
		base.FontSize = *o.FontSize
	}
	if o.StrokeWidth != nil {
		base.StrokeWidth = *o.StrokeWidth
	}
	if o.TextGap != nil {
		base.TextGap = *o.TextGap
	}
	return base
}

// Float returns a pointer to v for building an Override
func Float(v float64) *float64 { return &v }

// String returns a pointer to v for building an Override
func String(v string) *string { return &v }

// LabelOffset is the vertical distance from a rectangle's top edge to its label origin
func (s LabelStyle) LabelOffset() float64 {
	return s.TextGap + s.FontSize
}

// Validate checks that opacities are within [0,1] and the color parses
func (s LabelStyle) Validate() error {
	if s.FillOpacity < 0 || s.FillOpacity > 1 {
		return fmt.Errorf("fill_opacity must be between 0 and 1")
	}
	if s.SelectOpacity < 0 || s.SelectOpacity > 1 {
		return fmt.Errorf("select_opacity must be between 0 and 1")
	}
	if s.FontSize <= 0 {
		return fmt.Errorf("font_size must be positive")
	}
	if _, err := ParseColor(s.Color); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	return nil
}

var digits = regexp.MustCompile(`\d+(\.\d+)?`)

// ParseColor parses #rgb, #rrggbb, rgb()/rgba() and hsl() strings. Any alpha
// component in the input is ignored; the result is opaque.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgb"):
		nums, err := leadingNumbers(s, 3)
		if err != nil {
			return color.NRGBA{}, err
		}
		return color.NRGBA{R: channel(nums[0]), G: channel(nums[1]), B: channel(nums[2]), A: 255}, nil
	case strings.HasPrefix(s, "hsl"):
		nums, err := leadingNumbers(s, 3)
		if err != nil {
			return color.NRGBA{}, err
		}
		r, g, b := hslToRGB(nums[0]/360, nums[1]/100, nums[2]/100)
		return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
	}
	return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

// ToRgba converts a color string to "rgba(r, g, b, a)" with alpha clamped to [0,1]
func ToRgba(s string, alpha float64) (string, error) {
	c, err := ParseColor(s)
	if err != nil {
		return "", err
	}
	alpha = math.Max(0, math.Min(1, alpha))
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, strconv.FormatFloat(alpha, 'f', -1, 64)), nil
}

// ParseRgba parses a color string and applies the alpha of an rgba() value
// when present, for rasterizing fills produced by ToRgba.
func ParseRgba(s string) (color.NRGBA, error) {
	c, err := ParseColor(s)
	if err != nil {
		return c, err
	}
	if strings.HasPrefix(strings.TrimSpace(s), "rgba") {
		nums := digits.FindAllString(s, -1)
		if len(nums) >= 4 {
			a, err := strconv.ParseFloat(nums[3], 64)
			if err == nil {
				c.A = uint8(math.Round(math.Max(0, math.Min(1, a)) * 255))
			}
		}
	}
	return c, nil
}

func parseHex(hex string) (color.NRGBA, error) {
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: #%s", ErrInvalidColor, hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: #%s", ErrInvalidColor, hex)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func leadingNumbers(s string, n int) ([]float64, error) {
	found := digits.FindAllString(s, n)
	if len(found) < n {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	out := make([]float64, n)
	for i, f := range found {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		out[i] = v
	}
	return out, nil
}

func channel(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	if s == 0 {
		v := channel(l * 255)
		return v, v, v
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	return channel(hueToRGB(p, q, h+1.0/3) * 255),
		channel(hueToRGB(p, q, h) * 255),
		channel(hueToRGB(p, q, h-1.0/3) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}
