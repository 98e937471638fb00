package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		label string
		want  Category
	}{
		{"🔥 Fire", CategoryFire},
		{"🚑 Medical", CategoryMedical},
		{"🚓 Crime", CategoryCrime},
		{"🚗 Accident", CategoryAccident},
		{"Forest Fire", CategoryFire},
		{"🌊 Flood", CategoryDefault},
		{"", CategoryDefault},
		{"fire", CategoryDefault}, // matching is case-sensitive
		{"Accident after Fire", CategoryFire},
		{"Accident / Crime scene", CategoryCrime},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.label))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for range 5 {
		assert.Equal(t, CategoryFire, Classify("🔥 Fire"))
		assert.Equal(t, CategoryCrime, Classify("🚓 Crime"))
	}
}

func TestCategory_Glyph(t *testing.T) {
	assert.Equal(t, "🔥", CategoryFire.Glyph())
	assert.Equal(t, "🚑", CategoryMedical.Glyph())
	assert.Equal(t, "🚓", CategoryCrime.Glyph())
	assert.Equal(t, "🚗", CategoryAccident.Glyph())
	assert.Equal(t, "📍", CategoryDefault.Glyph())
}

func TestCategory_MarshalText(t *testing.T) {
	b, err := CategoryMedical.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "medical", string(b))

	var c Category
	assert.NoError(t, c.UnmarshalText(b))
	assert.Equal(t, CategoryMedical, c)
	assert.Error(t, c.UnmarshalText([]byte("flood")))
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "Medical", KindName("🚑 Medical"))
	assert.Equal(t, "Road Accident", KindName("🚗 Road Accident"))
	assert.Equal(t, "Gas Leak", KindName("Gas Leak"))
	assert.Equal(t, "Fire", KindName("Fire"))
	assert.Equal(t, "", KindName(""))
}
