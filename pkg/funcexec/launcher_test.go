package funcexec

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name    string
		cmdline string
		want    []string
		wantErr bool
	}{
		{name: "simple", cmdline: "echo hi", want: []string{"echo", "hi"}},
		{name: "extra whitespace", cmdline: "  wc   -l  ", want: []string{"wc", "-l"}},
		{name: "single quotes", cmdline: "sh -c 'echo a b'", want: []string{"sh", "-c", "echo a b"}},
		{name: "escaped space", cmdline: `ls my\ dir`, want: []string{"ls", "my dir"}},
		{name: "voice flag", cmdline: "espeak-ng -v en", want: []string{"espeak-ng", "-v", "en"}},
		{name: "unterminated quote", cmdline: "echo 'oops", wantErr: true},
		{name: "blank", cmdline: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitCommand(tt.cmdline)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestLauncher(t *testing.T) (*Launcher, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	stdout := &bytes.Buffer{}
	l := NewLauncher(LauncherConfig{
		Dir:         dir,
		ExecLogPath: filepath.Join(dir, "execution.log"),
	}, stdout, zerolog.Nop())
	return l, stdout, dir
}

func TestLauncher_Launch(t *testing.T) {
	l, stdout, dir := newTestLauncher(t)
	ctx := context.Background()

	inv, err := l.Launch("cat")
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, []string{"cat"}, inv.Args)
	assert.Equal(t, dir+"$ cat\n", stdout.String())

	_, err = inv.Write([]byte("echoed back"))
	require.NoError(t, err)
	require.NoError(t, inv.CloseInput())

	res, err := inv.Wait(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "echoed back", string(res.Output))
	assert.False(t, res.Truncated)
	assert.Equal(t, int64(len("echoed back")), inv.Written())

	records, err := ReadExecLog(filepath.Join(dir, "execution.log"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"cat"}}, records)
}

func TestLauncher_SpawnFailure(t *testing.T) {
	l, _, _ := newTestLauncher(t)

	inv, err := l.Launch("shellm-test-no-such-binary")
	assert.Nil(t, inv)
	assert.ErrorIs(t, err, ErrSpawnFailed)

	inv, err = l.Launch(`echo "unterminated`)
	assert.Nil(t, inv)
	assert.ErrorIs(t, err, ErrSpawnFailed)
}

func TestLauncher_UnwritableExecLog(t *testing.T) {
	dir := t.TempDir()
	l := NewLauncher(LauncherConfig{
		Dir:         dir,
		ExecLogPath: dir,
	}, nil, zerolog.Nop())

	_, err := l.Launch("true")
	assert.ErrorIs(t, err, ErrSpawnFailed)
}

func TestInvocation_NonZeroExit(t *testing.T) {
	l, _, _ := newTestLauncher(t)

	inv, err := l.Launch("sh -c 'echo failing; exit 3'")
	require.NoError(t, err)
	require.NoError(t, inv.CloseInput())

	res, err := inv.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "failing\n", string(res.Output))
}

func TestInvocation_WaitTimeout(t *testing.T) {
	l, _, _ := newTestLauncher(t)

	inv, err := l.Launch("sleep 30")
	require.NoError(t, err)

	start := time.Now()
	_, err = inv.Wait(context.Background(), 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrInvocationTimeout)
	assert.Less(t, time.Since(start), 10*time.Second)

	// a finished invocation returns its result again without blocking
	_, err = inv.Wait(context.Background(), 0)
	assert.NoError(t, err)
}

func TestInvocation_ExitedBeforeCancel(t *testing.T) {
	l, _, _ := newTestLauncher(t)

	for i := 0; i < 5; i++ {
		inv, err := l.Launch("sh -c 'exit 4'")
		require.NoError(t, err)
		require.NoError(t, inv.CloseInput())
		time.Sleep(300 * time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := inv.Wait(ctx, time.Nanosecond)
		require.NoError(t, err)
		assert.Equal(t, 4, res.ExitCode)
	}
}

func TestInvocation_CancelKillsRunning(t *testing.T) {
	l, _, _ := newTestLauncher(t)

	inv, err := l.Launch("sleep 30")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := inv.Wait(ctx, 0)
	assert.ErrorIs(t, err, ErrInvocationTimeout)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, -1, res.ExitCode)
}

func TestInvocation_StickyWriteError(t *testing.T) {
	l, _, _ := newTestLauncher(t)

	inv, err := l.Launch("true")
	require.NoError(t, err)
	_, err = inv.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)

	_, err = inv.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrWriteFailed)
	first := inv.WriteErr()

	_, err = inv.Write([]byte("later"))
	assert.Equal(t, first, err)
}

func TestInvocation_Abort(t *testing.T) {
	l, _, _ := newTestLauncher(t)

	inv, err := l.Launch("cat")
	require.NoError(t, err)

	res := inv.Abort()
	assert.NotEqual(t, 0, res.ExitCode)
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(8)

	n, err := b.Write([]byte("0123"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, _ = b.Write([]byte(strings.Repeat("x", 6) + "yz"))
	out, truncated := b.Bytes()
	assert.Equal(t, "xxxxxxyz", string(out))
	assert.True(t, truncated)
}
