package devnode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Spec)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(s *Spec) {},
		},
		{
			name:   "loopback ip allowed",
			mutate: func(s *Spec) { s.Hostname = "127.0.0.1" },
		},
		{
			name:    "remote host refused",
			mutate:  func(s *Spec) { s.Hostname = "example.com" },
			wantErr: "non-local host",
		},
		{
			name:    "public ip refused",
			mutate:  func(s *Spec) { s.Hostname = "8.8.8.8" },
			wantErr: "non-local host",
		},
		{
			name:    "missing data dir",
			mutate:  func(s *Spec) { s.DataDir = "" },
			wantErr: "dataDir",
		},
		{
			name:    "invalid port",
			mutate:  func(s *Spec) { s.Port = 0 },
			wantErr: "port",
		},
		{
			name:    "invalid balance",
			mutate:  func(s *Spec) { s.InitialBalance = "lots" },
			wantErr: "balance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec(t)
			tt.mutate(spec)

			err := spec.Validate()

			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSpecEndpoint(t *testing.T) {
	spec := testSpec(t)

	assert.Equal(t, "http://localhost:8545", spec.Endpoint())
}
