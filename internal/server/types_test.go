package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecondsUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"integer", `5`, 5, false},
		{"float", `2.5`, 2.5, false},
		{"quoted integer", `"5"`, 5, false},
		{"quoted float", `"2.5"`, 2.5, false},
		{"word", `"abc"`, 0, true},
		{"empty string", `""`, 0, true},
		{"null", `null`, 0, true},
		{"bool", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Seconds
			err := json.Unmarshal([]byte(tt.input), &s)
			if tt.wantErr {
				assert.ErrorIs(t, err, errNotNumeric)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, float64(s))
		})
	}
}
