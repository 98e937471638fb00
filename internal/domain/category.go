package domain

import (
	"fmt"
	"strings"
)

// Category is the visual treatment bucket for an incident. The set is closed
// and independent of the free-form type label.
type Category int

const (
	CategoryDefault Category = iota
	CategoryFire
	CategoryMedical
	CategoryCrime
	CategoryAccident
)

// classificationOrder fixes which keyword wins when a label mentions several.
// High-severity categories come first so that severity derivation agrees with
// plain keyword containment.
var classificationOrder = []struct {
	keyword  string
	category Category
}{
	{"Fire", CategoryFire},
	{"Medical", CategoryMedical},
	{"Crime", CategoryCrime},
	{"Accident", CategoryAccident},
}

// Classify maps a type label onto a Category by keyword containment.
// Labels without a known keyword map to CategoryDefault.
func Classify(label string) Category {
	for _, c := range classificationOrder {
		if strings.Contains(label, c.keyword) {
			return c.category
		}
	}
	return CategoryDefault
}

func (c Category) String() string {
	switch c {
	case CategoryFire:
		return "fire"
	case CategoryMedical:
		return "medical"
	case CategoryCrime:
		return "crime"
	case CategoryAccident:
		return "accident"
	default:
		return "default"
	}
}

// MarshalText lets categories appear as JSON strings.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the names produced by MarshalText.
func (c *Category) UnmarshalText(text []byte) error {
	for _, cat := range []Category{CategoryDefault, CategoryFire, CategoryMedical, CategoryCrime, CategoryAccident} {
		if cat.String() == string(text) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", text)
}

// Glyph is the marker symbol for the category.
func (c Category) Glyph() string {
	switch c {
	case CategoryFire:
		return "🔥"
	case CategoryMedical:
		return "🚑"
	case CategoryCrime:
		return "🚓"
	case CategoryAccident:
		return "🚗"
	default:
		return "📍"
	}
}

// Severity is the priority a report of this category receives.
func (c Category) Severity() Severity {
	switch c {
	case CategoryFire, CategoryMedical, CategoryCrime:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// KindName strips a leading glyph from a type label: "🚑 Medical" → "Medical".
// Labels without a glyph are returned unchanged.
func KindName(label string) string {
	fields := strings.Fields(label)
	if len(fields) < 2 || startsAlnum(fields[0]) {
		return strings.TrimSpace(label)
	}
	return strings.Join(fields[1:], " ")
}

func startsAlnum(s string) bool {
	for _, r := range s {
		return r < 0x80 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}
	return false
}
