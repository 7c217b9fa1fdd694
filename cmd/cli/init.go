package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/foxhui123/AutoQA/internal/config"
	"github.com/foxhui123/AutoQA/internal/llm"
)

func initCmd() *cobra.Command {
	var (
		dir      string
		language string
		provider string
		model    string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a " + config.ProfileFileName + " generation profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := validateDirPath(dir)
			if err != nil {
				return err
			}

			path := filepath.Join(abs, config.ProfileFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}

			if provider != "" {
				kind, err := llm.ParseProviderKind(provider)
				if err != nil {
					return err
				}
				provider = string(kind)
			}

			profile := config.DefaultProfileConfig()
			profile.Merge(&config.ProfileConfig{
				Language: language,
				Provider: config.ProviderConfig{Kind: provider, Model: model},
			})

			if err := config.SaveProfileConfig(abs, profile); err != nil {
				return fmt.Errorf("failed to write profile: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to write the profile to")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Language of the generated cases")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Default provider")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Default model")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing profile")

	return cmd
}
