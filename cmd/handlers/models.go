package handlers

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gospeldiary/internal/llm"
)

// NewModelsCmd creates the models command: list Gemini models and their token limits
func NewModelsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List Gemini models with their input and output token limits",
		Long: `List the Gemini models visible to the configured API key together with
their token limits, to pick sensible generation.initial_budget and
generation.max_budget values.

By default only models that support generateContent are shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			gemini := appConfig.AI.Gemini
			if gemini.APIKey == "" {
				return fmt.Errorf("Gemini API key is required. Set GEMINI_API_KEY")
			}

			backend, err := llm.NewGeminiBackend(cmd.Context(), gemini.APIKey, gemini.Model, gemini.BaseURL)
			if err != nil {
				return err
			}

			models, err := backend.ListModels(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tDISPLAY NAME\tINPUT LIMIT\tOUTPUT LIMIT")
			shown := 0
			for _, m := range models {
				if !all && !slices.Contains(m.Actions, "generateContent") {
					continue
				}
				marker := ""
				if m.Name == gemini.Model {
					marker = " *"
				}
				fmt.Fprintf(w, "%s%s\t%s\t%d\t%d\n", m.Name, marker, m.DisplayName, m.InputTokenLimit, m.OutputTokenLimit)
				shown++
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "\n%d model(s); * marks the configured model\n", shown)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Show every model, including embedding-only ones")

	return cmd
}
