package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/shellm/pkg/funcexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCommandRunsTags(t *testing.T) {
	work := t.TempDir()
	input := "Sure, here it is:\n<function cmd=\"tee out.txt\">hello\nworld\n</function>\nDone."

	out, err := runCLI(t, input, "exec", "-C", work)
	require.NoError(t, err)

	assert.Contains(t, out, work+"$ tee out.txt\n")
	assert.NotContains(t, out, "Sure, here it is")

	data, err := os.ReadFile(filepath.Join(work, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", string(data))

	records, err := funcexec.ReadExecLog(filepath.Join(work, "execution.log"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"tee", "out.txt"}}, records)

	out, err = runCLI(t, "", "executions", "-C", work)
	require.NoError(t, err)
	assert.Equal(t, "tee out.txt\n", out)
}

func TestExecCommandFromFile(t *testing.T) {
	work := t.TempDir()
	src := filepath.Join(t.TempDir(), "reply.txt")
	require.NoError(t, os.WriteFile(src, []byte(`<function cmd="tee a.txt">one</function><function cmd="tee b.txt">two</function>`), 0600))

	_, err := runCLI(t, "", "exec", "-C", work, "--log-path", "runs.log", src)
	require.NoError(t, err)

	a, err := os.ReadFile(filepath.Join(work, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(a))
	b, err := os.ReadFile(filepath.Join(work, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))

	records, err := funcexec.ReadExecLog(filepath.Join(work, "runs.log"))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestExecCommandOnEOF(t *testing.T) {
	work := t.TempDir()
	truncated := `<function cmd="tee out.txt">partial`

	_, err := runCLI(t, truncated, "exec", "-C", work, "--on-eof", "fail")
	require.Error(t, err)
	assert.ErrorIs(t, err, funcexec.ErrTruncatedInput)

	_, err = runCLI(t, truncated, "exec", "-C", work, "--on-eof", "close")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(work, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "partial", string(data))
}

func TestExecCommandRejectsBadPolicy(t *testing.T) {
	_, err := runCLI(t, "", "exec", "--on-eof", "ignore")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--on-eof")
}

func TestExecutionsLimit(t *testing.T) {
	work := t.TempDir()
	input := `<function cmd="true">x</function><function cmd="tee c.txt">y</function>`
	_, err := runCLI(t, input, "exec", "-C", work)
	require.NoError(t, err)

	out, err := runCLI(t, "", "executions", "-C", work, "-n", "1")
	require.NoError(t, err)
	assert.Equal(t, "tee c.txt\n", out)
}
