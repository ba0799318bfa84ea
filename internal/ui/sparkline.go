package ui

import "slices"

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders throughput samples as exactly width block characters,
// scaled to the largest sample shown. Short input is padded on the left.
func Sparkline(samples []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}

	out := slices.Repeat([]rune{sparkBlocks[0]}, width)
	if len(samples) == 0 {
		return string(out)
	}
	peak := slices.Max(samples)
	if peak <= 0 {
		return string(out)
	}

	top := len(sparkBlocks) - 1
	offset := width - len(samples)
	for i, v := range samples {
		if v <= 0 {
			continue
		}
		out[offset+i] = sparkBlocks[min(int(v/peak*float64(top)), top)]
	}
	return string(out)
}
