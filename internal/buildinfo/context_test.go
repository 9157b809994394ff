package buildinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Getters(t *testing.T) {
	tests := []struct {
		name                  string
		ctx                   *Context
		version, date, system string
	}{
		{"nil context", nil, UnknownValue, UnknownValue, UnknownValue},
		{"empty values", NewContext("", "", ""), UnknownValue, UnknownValue, UnknownValue},
		{"set", NewContext("1.2.0", "2024-03-01", "abc"), "1.2.0", "2024-03-01", "abc"},
		{"pre-release", NewContext("1.2.0-rc.1+build.5", "", "abc"), "1.2.0-rc.1+build.5", UnknownValue, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.date, tt.ctx.GetBuildDate())
			assert.Equal(t, tt.system, tt.ctx.GetSystemID())
		})
	}
}

func TestShortSystemID(t *testing.T) {
	assert.Equal(t, "01234567", NewContext("", "", "0123456789").ShortSystemID())
	assert.Equal(t, "abc", NewContext("", "", "abc").ShortSystemID())
}

func TestCurrent_PersistsSystemID(t *testing.T) {
	idFile := filepath.Join(t.TempDir(), "system-id")

	first := Current(idFile)
	require.NoError(t, uuid.Validate(first.SystemID))
	assert.FileExists(t, idFile)

	second := Current(idFile)
	assert.Equal(t, first.SystemID, second.SystemID)
}

func TestCurrent_ReplacesInvalidID(t *testing.T) {
	idFile := filepath.Join(t.TempDir(), "system-id")
	require.NoError(t, os.WriteFile(idFile, []byte("garbage"), 0o644))

	ctx := Current(idFile)
	require.NoError(t, uuid.Validate(ctx.SystemID))

	data, err := os.ReadFile(idFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), ctx.SystemID)
}

func TestCurrent_NoFile(t *testing.T) {
	assert.NotEqual(t, Current("").SystemID, Current("").SystemID)
}
