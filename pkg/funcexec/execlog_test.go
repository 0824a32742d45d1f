package funcexec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecLog_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "execution.log")
	log := NewExecLog(path)

	require.NoError(t, log.Append([]string{"echo", "hi"}))
	require.NoError(t, log.Append([]string{"grep", "<b>&</b>"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\"echo\",\"hi\"]\n[\"grep\",\"<b>&</b>\"]\n", string(data))

	records, err := ReadExecLog(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"echo", "hi"}, {"grep", "<b>&</b>"}}, records)
}

func TestExecLog_Disabled(t *testing.T) {
	assert.NoError(t, NewExecLog("").Append([]string{"echo"}))

	var nilLog *ExecLog
	assert.NoError(t, nilLog.Append([]string{"echo"}))
}

func TestReadExecLog_Missing(t *testing.T) {
	records, err := ReadExecLog(filepath.Join(t.TempDir(), "nope.log"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadExecLog_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execution.log")
	require.NoError(t, os.WriteFile(path, []byte("[\"ok\"]\nnot json\n"), 0644))

	records, err := ReadExecLog(path)
	assert.Error(t, err)
	assert.Equal(t, [][]string{{"ok"}}, records)
}
