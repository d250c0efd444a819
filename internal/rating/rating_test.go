package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tags map[string]string
		want float64
		ok   bool
	}{
		{"plain five scale", map[string]string{"rating": "4.5"}, 4.5, true},
		{"fraction of five", map[string]string{"rating": "4.5/5"}, 4.5, true},
		{"fraction of ten", map[string]string{"rating": "8/10"}, 4.0, true},
		{"percentage", map[string]string{"review_score": "90%"}, 4.5, true},
		{"bare ten scale", map[string]string{"score": "9"}, 4.5, true},
		{"stars", map[string]string{"stars": "3"}, 3.0, true},
		{"negative clamps", map[string]string{"rating": "-2"}, 0.0, true},
		{"overflow clamps", map[string]string{"rating": "7/5"}, 5.0, true},
		{"whitespace tolerated", map[string]string{"rating": " 4 / 5 "}, 4.0, true},
		{"no rating tag", map[string]string{"name": "Bondi Beach"}, 0, false},
		{"unparseable", map[string]string{"rating": "great!"}, 0, false},
		{"empty value", map[string]string{"rating": ""}, 0, false},
		{"zero denominator", map[string]string{"rating": "4/0"}, 0, false},
		{"nil tags", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Normalize(tt.tags)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestNormalize_AlwaysInRange(t *testing.T) {
	t.Parallel()

	values := []string{"-100", "0", "0.1", "3", "5", "5.1", "10", "999", "50/5", "200%", "-5/5"}
	for _, v := range values {
		got, ok := Normalize(map[string]string{"rating": v})
		if ok {
			assert.GreaterOrEqual(t, got, 0.0, "value=%s", v)
			assert.LessOrEqual(t, got, 5.0, "value=%s", v)
		}
	}
}

func TestNormalize_KeyPriority(t *testing.T) {
	t.Parallel()

	got, ok := Normalize(map[string]string{"rating": "2", "stars": "5"})
	assert.True(t, ok)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestNormalize_SkipsUnparseableThenUsesNextKey(t *testing.T) {
	t.Parallel()

	got, ok := Normalize(map[string]string{"rating": "n/a", "stars": "4"})
	assert.True(t, ok)
	assert.InDelta(t, 4.0, got, 1e-9)
}
