package record

import (
	"fmt"
	"regexp"
	"strconv"
)

// DefaultAccentColor is used when no accent color is configured.
const DefaultAccentColor = "#1f2937"

var accentColorRE = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Branding is passed through to rendering. The core only checks that the
// accent color is well formed; the logo path is never opened.
type Branding struct {
	CompanyName string `json:"company_name" yaml:"company_name"`
	LogoPath    string `json:"logo_path" yaml:"logo_path"`
	AccentColor string `json:"accent_color" yaml:"accent_color"`
}

// Validate checks the accent color format. An empty color is allowed.
func (b Branding) Validate() error {
	if b.AccentColor != "" && !accentColorRE.MatchString(b.AccentColor) {
		return NewValidationError("branding", fmt.Sprintf("accent color %q must have the form #RRGGBB", b.AccentColor))
	}
	return nil
}

// Accent returns the accent color, or DefaultAccentColor when unset.
func (b Branding) Accent() string {
	if b.AccentColor == "" {
		return DefaultAccentColor
	}
	return b.AccentColor
}

// AccentRGB splits the accent color into its components.
func (b Branding) AccentRGB() (r, g, bl int, err error) {
	c := b.Accent()
	if !accentColorRE.MatchString(c) {
		return 0, 0, 0, NewValidationError("branding", fmt.Sprintf("accent color %q must have the form #RRGGBB", c))
	}
	v, err := strconv.ParseUint(c[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, err
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), nil
}
