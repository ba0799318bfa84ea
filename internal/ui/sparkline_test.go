package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		width   int
		want    string
	}{
		{"no samples", nil, 4, "▁▁▁▁"},
		{"idle device", []float64{0, 0, 0}, 3, "▁▁▁"},
		{"single sample padded left", []float64{4096}, 4, "▁▁▁█"},
		{"steady throughput", []float64{5, 5, 5}, 3, "███"},
		{"ramp", []float64{1, 2, 3, 4, 5, 6, 7, 8}, 8, "▁▂▃▄▅▆▇█"},
		{"keeps newest samples", []float64{800, 0, 100, 200}, 2, "▄█"},
		{"zero width", []float64{1, 2, 3}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sparkline(tt.samples, tt.width)
			assert.Equal(t, tt.want, got)
			assert.Len(t, []rune(got), tt.width)
		})
	}
}
