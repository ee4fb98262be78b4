package texture

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned when a format name is not one of BC1, BC2, BC3.
var ErrUnknownFormat = errors.New("unknown compression format")

// Format describes a block-compressed output format.
type Format struct {
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

var (
	BC1 = Format{
		Name:        "BC1",
		Extension:   ".dds",
		Code:        "BC1",
		Description: "DXT1 - RGB, 1-bit alpha, 6:1 compression",
	}
	BC2 = Format{
		Name:        "BC2",
		Extension:   ".dds",
		Code:        "BC2",
		Description: "DXT3 - RGBA, explicit alpha, 4:1 compression",
	}
	BC3 = Format{
		Name:        "BC3",
		Extension:   ".dds",
		Code:        "BC3",
		Description: "DXT5 - RGBA, interpolated alpha, 4:1 compression",
	}
)

// Formats returns all supported formats in their canonical order.
func Formats() []Format {
	return []Format{BC1, BC2, BC3}
}

// FormatNames returns the names of all supported formats.
func FormatNames() []string {
	all := Formats()
	names := make([]string, len(all))
	for i, f := range all {
		names[i] = f.Name
	}
	return names
}

// ParseFormat looks up a format by name, ignoring case.
func ParseFormat(name string) (Format, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for _, f := range Formats() {
		if f.Name == want {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownFormat, name, strings.Join(FormatNames(), ", "))
}

// ParseFormats parses a list of format names. An empty list selects every
// format. Duplicates are collapsed and canonical order is kept.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 {
		return Formats(), nil
	}

	selected := make(map[string]bool, len(names))
	for _, name := range names {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		selected[f.Name] = true
	}

	var formats []Format
	for _, f := range Formats() {
		if selected[f.Name] {
			formats = append(formats, f)
		}
	}
	return formats, nil
}
