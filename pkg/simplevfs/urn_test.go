package simplevfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/simplevfs"
)

func TestParseURN(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		{
			name:  "client root",
			input: "aff4:/C.1234567812345678",
		},
		{
			name:  "nested path",
			input: "aff4:/C.1234567812345678/fs/os/etc/passwd",
		},
		{
			name:  "path content with backslashes",
			input: `aff4:/C.1234567812345678/fs/tsk/\\.\Volume{1234}\/windows`,
		},
		{
			name:        "missing scheme",
			input:       "C.1234567812345678",
			expectError: true,
		},
		{
			name:        "scheme without slash",
			input:       "aff4:C.1234567812345678",
			expectError: true,
		},
		{
			name:        "no root component",
			input:       "aff4:/",
			expectError: true,
		},
		{
			name:        "empty",
			input:       "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urn, err := simplevfs.ParseURN(tt.input)

			if tt.expectError {
				assert.ErrorIs(t, err, simplevfs.ErrInvalidURN)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.input, urn.String())
			}
		})
	}
}

func TestClientURN(t *testing.T) {
	t.Run("valid client id", func(t *testing.T) {
		urn, err := simplevfs.ClientURN("C.1234567812345678")
		require.NoError(t, err)
		assert.Equal(t, "aff4:/C.1234567812345678", urn.String())
	})

	t.Run("empty client id", func(t *testing.T) {
		_, err := simplevfs.ClientURN("")
		assert.ErrorIs(t, err, simplevfs.ErrInvalidURN)
	})

	t.Run("client id with separators", func(t *testing.T) {
		_, err := simplevfs.ClientURN("C.1234/evil")
		assert.ErrorIs(t, err, simplevfs.ErrInvalidURN)

		_, err = simplevfs.ClientURN(`C.1234\evil`)
		assert.ErrorIs(t, err, simplevfs.ErrInvalidURN)
	})
}

func TestURNAdd(t *testing.T) {
	urn, err := simplevfs.ClientURN("C.1234567812345678")
	require.NoError(t, err)

	t.Run("single component", func(t *testing.T) {
		assert.Equal(t, "aff4:/C.1234567812345678/fs", urn.Add("fs").String())
	})

	t.Run("separators inside a component are preserved", func(t *testing.T) {
		got := urn.Add("fs").Add("os").Add("//proc//self")
		assert.Equal(t, "aff4:/C.1234567812345678/fs/os///proc//self", got.String())
	})
}
