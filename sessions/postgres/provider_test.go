package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeleteOldCondition(t *testing.T) {
	tests := []struct {
		name        string
		onlyExpired bool
		onlyInvalid bool
		want        string
	}{
		{"expired only excludes invalidated", true, false, `(is_valid AND expires_at <= now())`},
		{"invalid only", false, true, `NOT is_valid`},
		{"neither sweeps everything dead", false, false, `(NOT is_valid OR expires_at <= now())`},
		{"both sweeps everything dead", true, true, `(NOT is_valid OR expires_at <= now())`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, deleteOldCondition(tc.onlyExpired, tc.onlyInvalid))
		})
	}
}
