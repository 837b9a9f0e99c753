package flightstatus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUUID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{
			name:  "valid v4 uuid",
			input: "9b2f4c2d-6d2a-4bb0-8a9d-5b6f7f8e9a0b",
			want:  true,
		},
		{
			name:  "valid v7 uuid",
			input: "0190a1b2-c3d4-7e5f-8a6b-7c8d9e0f1a2b",
			want:  true,
		},
		{
			name:  "empty string",
			input: "",
			want:  false,
		},
		{
			name:  "not a uuid",
			input: "AA123",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, IsUUID(tt.input))
		})
	}
}

func TestGenerateUUIDv7(t *testing.T) {
	t.Parallel()

	id, err := GenerateUUIDv7()
	require.NoError(t, err)

	assert.Equal(t, uuid.Version(7), id.Version())
	assert.True(t, IsUUID(id.String()))
}

func TestGenerateUUIDv7_Monotonic(t *testing.T) {
	t.Parallel()

	// V7 IDs embed a millisecond timestamp, so successive IDs sort in
	// generation order.
	first, err := GenerateUUIDv7()
	require.NoError(t, err)

	second, err := GenerateUUIDv7()
	require.NoError(t, err)

	assert.LessOrEqual(t, first.String(), second.String())
}
