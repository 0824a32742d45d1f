package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/harun/shellm/internal/observability"
	"github.com/harun/shellm/pkg/funcexec"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	execWorkdir      string
	execLogPath      string
	execWaitTimeout  time.Duration
	execOnEOF        string
	execMaxTagLength int
)

var execCmd = &cobra.Command{
	Use:   "exec [file]",
	Short: "Run the function tags found in a stream",
	Long: `Read a stream from a file or stdin and run every
<function cmd="...">body</function> in it. The body is piped into the
command's stdin as it arrives. Everything outside tags is discarded.

Use it at the end of a pipeline:

  shellm chat prompt.txt | shellm exec`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExec,
}

func init() {
	addExecFlags(execCmd)
	rootCmd.AddCommand(execCmd)
}

// addExecFlags registers the executor overrides on cmd
func addExecFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&execWorkdir, "workdir", "C", "", "working directory for spawned commands (default is the current directory)")
	cmd.Flags().StringVar(&execLogPath, "log-path", "", "execution log file, relative to the working directory (default from config)")
	cmd.Flags().DurationVar(&execWaitTimeout, "wait-timeout", 0, "kill a command that has not exited this long after its closing tag (default from config)")
	cmd.Flags().StringVar(&execOnEOF, "on-eof", "", "end of stream inside a tag: close or fail (default from config)")
	cmd.Flags().IntVar(&execMaxTagLength, "max-tag-length", 0, "longest accepted opening tag in bytes (default from config)")
}

// scannerOptions merges the exec config section with any flags set on cmd.
func scannerOptions(cmd *cobra.Command, stdout, stderr io.Writer) (funcexec.Options, error) {
	ec := appConfig.Exec
	flags := cmd.Flags()

	if flags.Changed("log-path") {
		ec.LogPath = execLogPath
	}
	if flags.Changed("wait-timeout") {
		ec.WaitTimeout = execWaitTimeout
	}
	if flags.Changed("on-eof") {
		ec.OnEOF = execOnEOF
	}
	if flags.Changed("max-tag-length") {
		ec.MaxTagLength = execMaxTagLength
	}

	policy := funcexec.EOFPolicy(ec.OnEOF)
	if policy != funcexec.EOFClose && policy != funcexec.EOFFail {
		return funcexec.Options{}, fmt.Errorf("invalid --on-eof %q (must be close or fail)", ec.OnEOF)
	}

	logPath := ec.LogPath
	if logPath != "" && !filepath.IsAbs(logPath) && execWorkdir != "" {
		logPath = filepath.Join(execWorkdir, logPath)
	}

	return funcexec.Options{
		Launch: funcexec.LauncherConfig{
			Dir:            execWorkdir,
			ExecLogPath:    logPath,
			MaxOutputBytes: ec.MaxOutputBytes,
		},
		Stdout:       stdout,
		Stderr:       stderr,
		Logger:       &log.Logger,
		MaxTagLength: ec.MaxTagLength,
		WaitTimeout:  ec.WaitTimeout,
		OnEOF:        policy,
	}, nil
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	opts, err := scannerOptions(cmd, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	observability.Serve(ctx, appConfig.Metrics.Listen)

	scanner := funcexec.New(opts)
	runErr := scanner.Run(ctx, in)

	stats := scanner.Stats()
	log.Info().
		Int("invocations", stats.Invocations).
		Int("spawn_failures", stats.SpawnFailures).
		Int("write_failures", stats.WriteFailures).
		Int("timeouts", stats.Timeouts).
		Int64("bytes_forwarded", stats.BytesForwarded).
		Msg("Stream finished")

	return runErr
}
