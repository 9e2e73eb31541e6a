package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/kbase/internal/models"
)

var topK int

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	askCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default from config)")
	chatCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default from config)")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

	a, err := newApp(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := ask(cmd.Context(), a, question)
	if err != nil {
		return err
	}
	printAnswer(answer)
	return nil
}

func ask(ctx context.Context, a *app, question string) (models.Answer, error) {
	var answer models.Answer
	err := withSpinner("Searching documents...", func() error {
		var err error
		answer, err = a.engine.Ask(ctx, question, topK)
		return err
	})
	return answer, err
}

func printAnswer(answer models.Answer) {
	assistant := color.New(color.FgCyan).PrintfFunc()
	assistant("\n%s\n", answer.Text)

	if len(answer.Citations) == 0 {
		return
	}
	color.New(color.Faint).Println("\nSources:")
	for i, c := range answer.Citations {
		line := fmt.Sprintf("  [%d] %s", i+1, c.Source)
		if page, ok := c.Metadata["page"]; ok {
			line += fmt.Sprintf(" (page %v)", page)
		}
		color.New(color.Faint).Println(line)
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	color.Cyan("\nChat with your knowledge base (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") || strings.EqualFold(question, "quit") {
			break
		}

		answer, err := ask(ctx, a, question)
		if err != nil {
			color.Red("Error: %v\n", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		printAnswer(answer)
	}

	return scanner.Err()
}
