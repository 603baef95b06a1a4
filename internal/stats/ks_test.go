package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKSPValueExact(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		// 2 of the 20 lattice paths leave the band when D = 1.
		{"disjoint 3x3", []float64{1, 2, 3}, []float64{4, 5, 6}, 0.1},
		// 2 of the 6 paths leave the band when D = 1.
		{"disjoint 2x2", []float64{1, 2}, []float64{3, 4}, 1.0 / 3},
		{"unsorted input", []float64{3, 1, 2}, []float64{6, 4, 5}, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, KSPValue(tt.x, tt.y), 1e-9)
		})
	}
}

func TestKSPValueDoesNotSortInput(t *testing.T) {
	x := []float64{3, 1, 2}
	KSPValue(x, []float64{1, 2})
	assert.Equal(t, []float64{3, 1, 2}, x)
}

func TestKSPValueAsymptotic(t *testing.T) {
	var x, y []float64
	for i := 0; i < 150; i++ {
		x = append(x, float64(i))
		y = append(y, float64(i)+1000)
	}
	p := KSPValue(x, y)
	assert.Less(t, p, 1e-6)
	assert.GreaterOrEqual(t, p, 0.0)

	assert.InDelta(t, 1.0, KSPValue(x, x), 1e-9)
}

func TestKSPValueEmpty(t *testing.T) {
	assert.Equal(t, 1.0, KSPValue(nil, []float64{1}))
}
