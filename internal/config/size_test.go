package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{name: "bare bytes", in: "4096", want: 4096},
		{name: "explicit bytes suffix", in: "512b", want: 512},
		{name: "kibibytes", in: "64K", want: 64 << 10},
		{name: "lowercase suffix", in: "64k", want: 64 << 10},
		{name: "mebibytes", in: "100M", want: 100 << 20},
		{name: "gibibytes", in: "2G", want: 2 << 30},
		{name: "tebibytes", in: "1T", want: 1 << 40},
		{name: "fractional", in: "1.5G", want: 3 << 29},
		{name: "surrounding space", in: "  8M ", want: 8 << 20},
		{name: "zero", in: "0", want: 0},
		{name: "empty", in: "", wantErr: true},
		{name: "suffix only", in: "M", wantErr: true},
		{name: "word", in: "fast", wantErr: true},
		{name: "negative", in: "-1M", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
