package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandString(t *testing.T) {
	t.Setenv("ATTEND_DB_PASS", "s3cret")
	t.Setenv("ATTEND_EMPTY", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty", "", "", false},
		{"literal", "plain", "plain", false},
		{"variable", "${ATTEND_DB_PASS}", "s3cret", false},
		{"embedded", "pre-${ATTEND_DB_PASS}-post", "pre-s3cret-post", false},
		{"default used", "${ATTEND_UNSET:-fallback}", "fallback", false},
		{"empty default", "${ATTEND_UNSET:-}", "", false},
		{"empty variable uses default", "${ATTEND_EMPTY:-x}", "x", false},
		{"bare dollar kept", "pa$word", "pa$word", false},
		{"missing", "${ATTEND_UNSET}", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "ATTEND_UNSET")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "db_password")
	require.NoError(t, os.WriteFile(good, []byte("hunter2\n"), 0o600))
	got, err := ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	loose := filepath.Join(dir, "loose")
	require.NoError(t, os.WriteFile(loose, []byte(" spaced "), 0o644))
	got, err = ReadFile(loose)
	require.NoError(t, err)
	assert.Equal(t, " spaced ", got, "only trailing newlines are trimmed")

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = ReadFile(empty)
	require.Error(t, err)

	big := filepath.Join(dir, "big")
	require.NoError(t, os.WriteFile(big, make([]byte, maxFileSize+1), 0o600))
	_, err = ReadFile(big)
	require.Error(t, err)

	_, err = ReadFile(dir)
	require.Error(t, err)
	_, err = ReadFile(filepath.Join(dir, "missing"))
	require.Error(t, err)
	_, err = ReadFile("")
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	t.Setenv("ATTEND_MQTT_PASS", "from-env")
	file := filepath.Join(t.TempDir(), "mqtt")
	require.NoError(t, os.WriteFile(file, []byte("from-file"), 0o600))

	got, err := Resolve(file, "${ATTEND_MQTT_PASS}")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got, "file wins over value")

	got, err = Resolve("", "${ATTEND_MQTT_PASS}")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	got, err = Resolve("", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}
