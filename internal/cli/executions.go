package cli

import (
	"fmt"
	"path/filepath"

	"github.com/harun/shellm/pkg/funcexec"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
)

var executionsLimit int

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "List commands recorded in the execution log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appConfig.Exec.LogPath
		if cmd.Flags().Changed("log-path") {
			path = execLogPath
		}
		if path != "" && !filepath.IsAbs(path) && execWorkdir != "" {
			path = filepath.Join(execWorkdir, path)
		}

		records, err := funcexec.ReadExecLog(path)
		if err != nil {
			return err
		}
		if executionsLimit > 0 && len(records) > executionsLimit {
			records = records[len(records)-executionsLimit:]
		}

		out := cmd.OutOrStdout()
		for _, argv := range records {
			fmt.Fprintln(out, shellquote.Join(argv...))
		}
		return nil
	},
}

func init() {
	executionsCmd.Flags().IntVarP(&executionsLimit, "limit", "n", 0, "show only the last n commands (0 shows all)")
	executionsCmd.Flags().StringVarP(&execWorkdir, "workdir", "C", "", "directory the log path is relative to")
	executionsCmd.Flags().StringVar(&execLogPath, "log-path", "", "execution log file (default from config)")
	rootCmd.AddCommand(executionsCmd)
}
