package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxhui123/AutoQA/internal/emitter"
	"github.com/foxhui123/AutoQA/internal/llm"
	"github.com/foxhui123/AutoQA/internal/settings"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage persisted provider settings",
		Long: `Reads and writes the settings the providers use at request time.

Keys:
  credential        hosted API key
  local_model_url   OpenAI-compatible chat completions URL
  local_model_name  model name sent to the local server`,
	}

	cmd.AddCommand(settingsListCmd())
	cmd.AddCommand(settingsGetCmd())
	cmd.AddCommand(settingsSetCmd())
	cmd.AddCommand(settingsUnsetCmd())

	return cmd
}

func withStore(fn func(ctx context.Context, store settings.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(context.Background(), store)
}

func settingsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backend: %s (%s)\n\n", cfg.Settings.Backend, storeLocation(cfg.Settings))

			return withStore(func(ctx context.Context, store settings.Store) error {
				values, err := settings.Snapshot(ctx, store)
				if err != nil {
					return err
				}
				printSettings(cmd.OutOrStdout(), values)
				return nil
			})
		},
	}
}

func settingsGetCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !settings.IsKnownKey(key) {
				return fmt.Errorf("%w: %s", settings.ErrUnknownKey, key)
			}

			return withStore(func(ctx context.Context, store settings.Store) error {
				v, err := settings.Lookup(ctx, store, key, defaultFor(key))
				if err != nil {
					return err
				}
				if key == settings.KeyCredential && !reveal {
					v = settings.Mask(v)
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the credential unmasked")

	return cmd
}

func settingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store settings.Store) error {
				if err := settings.Save(ctx, store, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", args[0])
				return nil
			})
		},
	}
}

func settingsUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store settings.Store) error {
				if err := settings.Save(ctx, store, args[0], ""); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func defaultFor(key string) string {
	switch key {
	case settings.KeyLocalModelURL:
		return settings.DefaultLocalModelURL
	case settings.KeyLocalModelName:
		return settings.DefaultLocalModelName
	}
	return ""
}

func printSettings(out io.Writer, values map[string]string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")

	for _, key := range settings.Keys {
		v, ok := values[key]
		source := "stored"
		if !ok || strings.TrimSpace(v) == "" {
			v, source = defaultFor(key), "default"
			if v == "" {
				v, source = "-", "unset"
			}
		}
		if key == settings.KeyCredential && source == "stored" {
			v = settings.Mask(v)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", key, v, source)
	}
	w.Flush()
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List model providers and their availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			return withStore(func(ctx context.Context, store settings.Store) error {
				adapter := llm.NewAdapterFromConfig(cfg.LLM, store)
				printProviders(cmd.OutOrStdout(), adapter.DefaultProvider(), adapter.Providers(ctx))
				return nil
			})
		},
	}
}

func printProviders(out io.Writer, def llm.ProviderKind, statuses []llm.ProviderStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tSTATUS\tMODEL\tENDPOINT\tIMAGES")

	for _, p := range statuses {
		name := string(p.Kind)
		if p.Kind == def {
			name += " *"
		}
		images := "no"
		if p.SupportsImages {
			images = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, p.Availability, orDash(p.Model), orDash(p.Endpoint), images)
	}
	w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List output formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := emitter.NewRegistry()
			for _, name := range registry.List() {
				e, _ := registry.Get(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name, e.ContentType())
			}
			return nil
		},
	}
}
