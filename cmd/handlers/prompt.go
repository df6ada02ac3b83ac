package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gospeldiary/internal/llm"
	"gospeldiary/internal/logger"
	"gospeldiary/internal/reflection"
)

// NewPromptCmd creates the prompt command: render the prompt and estimate its size
func NewPromptCmd() *cobra.Command {
	var (
		dateStr string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Render the AI prompt for a day without calling the AI",
		Long: `Extract the Gospel and render it into the prompt template, then print
the prompt with an estimate of its token count. Use it to check a custom
template (--config generation.template_path or PROMPT_TEMPLATE).

Examples:
  gospeldiary prompt
  gospeldiary prompt --file saved-page.html --date 2024-03-09`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := reflection.LoadTemplate(appConfig.Generation.TemplatePath)
			if err != nil {
				return err
			}

			date, err := parseDate(dateStr, appConfig.Location())
			if err != nil {
				return err
			}
			record, err := extractRecord(cmd.Context(), date, file)
			if err != nil {
				return err
			}

			prompt, err := reflection.RenderPrompt(tmpl, date.Format(appConfig.Generation.DateLayout), record.Combined())
			if err != nil {
				return err
			}

			model := appConfig.AI.ModelName()
			tokens, err := llm.EstimateTokens(prompt, model)
			if err != nil {
				logger.Warn("Token encoder unavailable, using rough estimate", "error", err)
				tokens = llm.RoughTokens(prompt)
			}

			fmt.Println(prompt)
			fmt.Fprintf(os.Stderr, "\n📊 %d chars, ~%d prompt tokens (%s), output budget %d tokens\n",
				len(prompt), tokens, model, appConfig.Generation.InitialBudget)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "Date to render, YYYY-MM-DD (default today in the configured timezone)")
	cmd.Flags().StringVar(&file, "file", "", "Extract from a saved HTML file instead of downloading")

	return cmd
}
