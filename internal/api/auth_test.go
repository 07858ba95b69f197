package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMaskAPIKeys(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{
			name: "long keys keep a four character prefix",
			keys: []string{"secret-key-1234"},
			want: []string{"secr***********"},
		},
		{
			name: "short keys are fully masked",
			keys: []string{"abcd", "ab"},
			want: []string{"****", "**"},
		},
		{
			name: "empty slice",
			keys: []string{},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskAPIKeys(tt.keys))
		})
	}
}

func TestServer_ShutdownBeforeRun(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.NoError(t, env.server.ShutdownWithTimeout(time.Second), "shutdown without a started listener is a no-op")
}
