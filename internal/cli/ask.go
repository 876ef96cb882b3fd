package cli

import (
	"fmt"
	"strings"

	"elearning-chatbot-be/internal/dto"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	askUser    string
	askSession string
)

func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message through the chatbot pipeline",
		Long: `Run a single chat turn against the configured model and knowledge base
and print the answer with its sources and suggestions.

Examples:
  chatctl ask "Làm thế nào để đăng ký khóa học?"
  chatctl ask --user u1 --session <id> "And how do I pay?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			res := rt.container.ChatbotService.SendMessage(cmd.Context(), askUser, &dto.SendMessageRequest{
				Message:   strings.Join(args, " "),
				SessionId: askSession,
			})
			printChatResponse(cmd, res)
			if res.ErrorCode != "" {
				return fmt.Errorf("chat turn failed: %s", res.ErrorCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&askUser, "user", "u", "cli", "user id to chat as")
	cmd.Flags().StringVarP(&askSession, "session", "s", "", "session id to continue")
	return cmd
}

func printChatResponse(cmd *cobra.Command, res *dto.ChatResponse) {
	out := cmd.OutOrStdout()
	if res.ErrorCode != "" {
		color.New(color.FgRed).Fprintf(out, "[%s] %s\n", res.ErrorCode, res.Response)
		return
	}
	fmt.Fprintln(out, res.Response)
	fmt.Fprintln(out)
	color.New(color.FgCyan).Fprintf(out, "session: %s  confidence: %.2f\n", res.SessionId, res.Confidence)
	if len(res.Sources) > 0 {
		color.New(color.FgYellow).Fprintf(out, "sources: %s\n", strings.Join(res.Sources, ", "))
	}
	for _, s := range res.Suggestions {
		color.New(color.FgGreen).Fprintf(out, "  > %s\n", s)
	}
}
