// Package poster defines the poster specification accepted at submission:
// the area to draw, the theme, and the output dimensions. A Spec is
// validated once and never mutated afterwards.
package poster

import (
	"fmt"
	"sort"
	"strings"

	"posterforge/internal/pkg/errors"
)

// DefaultTheme is used when no theme is given.
const DefaultTheme = "noir"

// DefaultDistance is the map radius in meters around the city center.
const DefaultDistance = 18000

// Dimension limits for custom sizes, in inches.
const (
	MinDimension = 1.0
	MaxDimension = 20.0
)

// Default dimensions (the poster_medium preset) when neither a size preset
// nor custom width/height is given.
const (
	DefaultWidth  = 12.0
	DefaultHeight = 16.0
)

// Spec describes one poster to generate. Width and Height are inches at
// 300 DPI, resolved from the size preset or custom values during Validate.
type Spec struct {
	City    string  `json:"city"`
	Country string  `json:"country"`
	Theme   string  `json:"theme"`
	Size    string  `json:"size,omitempty"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	// Distance is the map radius in meters.
	Distance int `json:"distance"`
	// DisplayCity/DisplayCountry override the printed names, e.g. for
	// non-Latin scripts.
	DisplayCity    string `json:"display_city,omitempty"`
	DisplayCountry string `json:"display_country,omitempty"`
	FontFamily     string `json:"font_family,omitempty"`
}

// SizePreset is a named output size.
type SizePreset struct {
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Description string  `json:"description"`
}

var themes = []string{
	"noir", "blueprint", "midnight_blue", "neon_cyberpunk", "japanese_ink",
	"terracotta", "sunset", "warm_beige", "pastel_dream", "ocean",
	"forest", "emerald", "copper_patina", "monochrome_blue",
	"gradient_roads", "contrast_zones", "autumn",
}

var sizePresets = map[string]SizePreset{
	"instagram":     {Width: 3.6, Height: 3.6, Description: "1080x1080px"},
	"mobile":        {Width: 3.6, Height: 6.4, Description: "1080x1920px"},
	"4k":            {Width: 12.8, Height: 7.2, Description: "3840x2160px"},
	"a4":            {Width: 8.27, Height: 11.69, Description: "2480x3508px"},
	"poster_small":  {Width: 8, Height: 10, Description: "2400x3000px"},
	"poster_medium": {Width: 12, Height: 16, Description: "3600x4800px"},
	"poster_large":  {Width: 18, Height: 24, Description: "5400x7200px"},
}

// Themes returns the theme catalog.
func Themes() []string {
	out := make([]string, len(themes))
	copy(out, themes)
	return out
}

// SizePresets returns the named size presets.
func SizePresets() map[string]SizePreset {
	out := make(map[string]SizePreset, len(sizePresets))
	for k, v := range sizePresets {
		out[k] = v
	}
	return out
}

// ValidTheme reports whether name is in the theme catalog.
func ValidTheme(name string) bool {
	for _, t := range themes {
		if t == name {
			return true
		}
	}
	return false
}

// Validate normalizes the spec in place and reports the first problem.
// A spec that passes Validate is ready for rendering.
func (s *Spec) Validate() error {
	s.City = strings.TrimSpace(s.City)
	s.Country = strings.TrimSpace(s.Country)
	s.Theme = strings.TrimSpace(s.Theme)
	s.Size = strings.TrimSpace(s.Size)

	if s.City == "" {
		return errors.ValidationField("city", "city is required")
	}
	if s.Country == "" {
		return errors.ValidationField("country", "country is required")
	}

	if s.Theme == "" {
		s.Theme = DefaultTheme
	}
	if !ValidTheme(s.Theme) {
		return errors.Validationf("invalid theme %q, available themes: %s",
			s.Theme, strings.Join(themes, ", ")).WithField("field", "theme")
	}

	switch {
	case s.Size != "":
		preset, ok := sizePresets[s.Size]
		if !ok {
			return errors.Validationf("invalid size %q, available sizes: %s",
				s.Size, strings.Join(presetNames(), ", ")).WithField("field", "size")
		}
		s.Width = preset.Width
		s.Height = preset.Height
	case s.Width != 0 || s.Height != 0:
		if s.Width < MinDimension || s.Width > MaxDimension {
			return errors.ValidationField("width",
				fmt.Sprintf("width must be between %g and %g inches", MinDimension, MaxDimension))
		}
		if s.Height < MinDimension || s.Height > MaxDimension {
			return errors.ValidationField("height",
				fmt.Sprintf("height must be between %g and %g inches", MinDimension, MaxDimension))
		}
	default:
		s.Width = DefaultWidth
		s.Height = DefaultHeight
	}

	if s.Distance == 0 {
		s.Distance = DefaultDistance
	}
	if s.Distance < 0 {
		return errors.ValidationField("distance", "distance must be positive")
	}

	return nil
}

func presetNames() []string {
	names := make([]string, 0, len(sizePresets))
	for k := range sizePresets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
