package main

import (
	"github.com/aretw0/lendflow/internal/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [conversation-id]",
	Short: "Talk to the loan assistant in the terminal",
	Long: `Starts an interactive conversation. Pass a conversation id to resume one kept by a
persistent store (file, sqlite or redis).

Inside the chat, /status prints the loan status and /id the conversation id.
Type exit or press Ctrl+D to leave.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		rt, _, logger, err := loadRuntime(ctx, cmd, runtimeOptions{quietLogs: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		jsonMode, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")
		opts := cli.ChatOptions{
			JSON:  jsonMode,
			Quiet: quiet,
			In:    cmd.InOrStdin(),
			Out:   cmd.OutOrStdout(),
		}
		if len(args) == 1 {
			opts.ConversationID = args[0]
		}
		return cli.RunChat(ctx, rt.Engine, logger, opts)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("json", false, "Read and write JSON lines instead of text")
	chatCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
