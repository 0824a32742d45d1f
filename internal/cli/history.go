package cli

import (
	"fmt"

	"github.com/harun/shellm/pkg/history"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or clear the chat history",
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print stored messages, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.New(appConfig.History.Path, appConfig.History.MaxMessages)
		if err != nil {
			return err
		}
		msgs, err := store.Tail(historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, msg := range msgs {
			fmt.Fprintf(out, "[%s] %s: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"), msg.Role, msg.Content)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.New(appConfig.History.Path, appConfig.History.MaxMessages)
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
		return nil
	},
}

func init() {
	historyShowCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show only the last n messages (0 shows all)")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
