package cli

import (
	"fmt"
	"io"

	"github.com/harun/shellm/pkg/agent"
	"github.com/harun/shellm/pkg/funcexec"
	"github.com/harun/shellm/pkg/history"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	chatSystem    string
	chatProvider  string
	chatModel     string
	chatBaseURL   string
	chatExec      bool
	chatNoHistory bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [file]",
	Short: "Send a prompt to the model and stream the reply",
	Long: `Send a prompt from a file or stdin to the configured model and stream
the reply to stdout. Previous turns are loaded from the history file unless
--no-history is set.

With --exec the reply is also fed to the function executor, so commands the
model emits run while it is still talking.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "system prompt (default from config)")
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "provider: openai or anthropic (default from config)")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model name (default from config)")
	chatCmd.Flags().StringVar(&chatBaseURL, "base-url", "", "API base URL (default from config)")
	chatCmd.Flags().BoolVar(&chatExec, "exec", false, "run function tags found in the reply")
	chatCmd.Flags().BoolVar(&chatNoHistory, "no-history", false, "neither load nor save history for this turn")
	addExecFlags(chatCmd)

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := appConfig.Chat

	flags := cmd.Flags()
	if flags.Changed("system") {
		cc.SystemPrompt = chatSystem
	}
	if flags.Changed("provider") {
		cc.Provider = chatProvider
	}
	if flags.Changed("model") {
		cc.Model = chatModel
	}
	if flags.Changed("base-url") {
		cc.BaseURL = chatBaseURL
	}

	prompt, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	factory := &agent.ProviderFactory{}
	provider, err := factory.NewProvider(agent.ProviderConfig{
		Provider: cc.Provider,
		APIKey:   cc.APIKey,
		BaseURL:  cc.BaseURL,
	})
	if err != nil {
		return err
	}

	var store *history.Store
	if appConfig.History.Enabled {
		store, err = history.New(appConfig.History.Path, appConfig.History.MaxMessages)
		if err != nil {
			return err
		}
	}

	runner, err := agent.NewRunner(agent.Config{
		Provider: provider,
		History:  store,
		Logger:   log.Logger,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var scanner *funcexec.Scanner
	if chatExec {
		opts, err := scannerOptions(cmd, out, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		scanner = funcexec.New(opts)
		out = io.MultiWriter(out, scanner.WriterContext(ctx))
	}

	_, runErr := runner.Run(ctx, agent.RunParams{
		Prompt:       prompt,
		SystemPrompt: cc.SystemPrompt,
		Model:        cc.Model,
		Temperature:  cc.Temperature,
		MaxTokens:    cc.MaxTokens,
		SkipHistory:  chatNoHistory,
	}, out)
	fmt.Fprintln(cmd.OutOrStdout())

	if scanner != nil {
		if err := scanner.Close(ctx); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
