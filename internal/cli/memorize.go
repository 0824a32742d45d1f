package cli

import (
	"fmt"
	"strings"

	"github.com/harun/shellm/pkg/memory"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	memoryModel   string
	memoryBaseURL string
	recallLimit   int
)

var memorizeCmd = &cobra.Command{
	Use:   "memorize [file]",
	Short: "Store the sentences of a text in memory",
	Long: `Split the text from a file or stdin into sentences, embed each one and
store it in the memory database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMemorize,
}

var recallCmd = &cobra.Command{
	Use:   "recall [file]",
	Short: "Print the stored sentences closest to a query",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRecall,
}

func init() {
	for _, cmd := range []*cobra.Command{memorizeCmd, recallCmd} {
		cmd.Flags().StringVar(&memoryModel, "model", "", "embedding model (default from config)")
		cmd.Flags().StringVar(&memoryBaseURL, "base-url", "", "embeddings API base URL (default from config)")
	}
	recallCmd.Flags().IntVarP(&recallLimit, "limit", "n", 0, "number of sentences to print (default from config)")

	rootCmd.AddCommand(memorizeCmd)
	rootCmd.AddCommand(recallCmd)
}

// openMemory opens the memory store with flag overrides applied
func openMemory(cmd *cobra.Command) (*memory.Store, error) {
	mc := appConfig.Memory
	if cmd.Flags().Changed("model") {
		mc.EmbeddingModel = memoryModel
	}
	if cmd.Flags().Changed("base-url") {
		mc.BaseURL = memoryBaseURL
	}

	return memory.NewStore(memory.Config{
		DBPath: mc.DBPath,
		Logger: log.Logger,
		EmbeddingProvider: memory.NewOpenAIProvider(memory.ProviderConfig{
			Model:   mc.EmbeddingModel,
			BaseURL: mc.BaseURL,
			APIKey:  mc.APIKey,
		}),
	})
}

func runMemorize(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	store, err := openMemory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Memorize(cmd.Context(), text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, entry := range entries {
		fmt.Fprintf(out, "Stored: %q with ID %s\n", entry.Text, entry.ID)
	}
	return nil
}

func runRecall(cmd *cobra.Command, args []string) error {
	query, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	limit := appConfig.Memory.Limit
	if cmd.Flags().Changed("limit") {
		limit = recallLimit
	}

	store, err := openMemory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.Recall(cmd.Context(), strings.TrimSpace(query), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "Nothing to remember.")
		return nil
	}
	fmt.Fprintln(out, "You can remember this:")
	for _, r := range results {
		fmt.Fprintf(out, "- %s (score: %.3f)\n", r.Text, r.Score)
	}
	return nil
}
