package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mockmaster/internal/adapter/gemini"
	"mockmaster/internal/config"
)

// NewSettingsCmd manages the persisted analysis-service settings (API key
// and model id).
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage analysis service settings",
	}
	cmd.AddCommand(newSetKeyCmd())
	cmd.AddCommand(newSetModelCmd())
	cmd.AddCommand(newListModelsCmd())
	return cmd
}

func newSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <api-key>",
		Short: "Persist the Gemini API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			cfg.SetAPIKey(args[0])
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Println("API key saved.")
			return nil
		},
	}
}

func newSetModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-model <model-id>",
		Short: "Persist the Gemini model identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			cfg.SetModel(args[0])
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Printf("Model set to %s.\n", args[0])
			return nil
		},
	}
}

func newListModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-models",
		Short: "List the Gemini models available for analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			models, err := gemini.ListModels(cmd.Context(), cfg.Gemini.APIKey)
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Printf("%s\t%s\n", m.ID, m.DisplayName)
			}
			return nil
		},
	}
}
