package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/foxhui123/AutoQA/internal/config"
	"github.com/foxhui123/AutoQA/internal/emitter"
	"github.com/foxhui123/AutoQA/internal/generator"
	"github.com/foxhui123/AutoQA/internal/llm"
)

// generateOptions collects the generate command flags
type generateOptions struct {
	text       string
	file       string
	image      string
	note       string
	provider   string
	model      string
	endpoint   string
	format     string
	output     string
	language   string
	profileDir string
	noEdge     bool
	noErrors   bool
}

func generateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate test cases from requirements or a flowchart",
		Long: `Generates a structured test suite with the selected model provider.

Exactly one input is required:
  --text   requirement text
  --file   a file holding requirement text ("-" reads stdin)
  --image  a JPG, PNG or WebP flowchart (hosted provider only)

Examples:
  autoqa generate --text "用户登录，邮箱格式校验，密码错误提示"
  autoqa generate --image flow.png --note "关注异常分支" --format xmind -o ./out
  autoqa generate --file req.txt --provider local-custom --model qwen2.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, cmd.OutOrStdout(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "Requirement text")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "File holding requirement text (- for stdin)")
	cmd.Flags().StringVarP(&opts.image, "image", "i", "", "Flowchart image (JPG, PNG or WebP)")
	cmd.Flags().StringVarP(&opts.note, "note", "n", "", "Additional text sent with a flowchart")
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "Provider (hosted-api, local-custom, on-device)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model override")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Endpoint override for the local provider")
	cmd.Flags().StringVar(&opts.format, "format", "table", "Output format (table, markdown, csv, json, xmind, svg)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file or directory (default stdout)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Language of the generated cases")
	cmd.Flags().StringVar(&opts.profileDir, "profile-dir", ".", "Directory holding "+config.ProfileFileName)
	cmd.Flags().BoolVar(&opts.noEdge, "no-edge-cases", false, "Do not ask for boundary cases")
	cmd.Flags().BoolVar(&opts.noErrors, "no-error-paths", false, "Do not ask for error handling cases")
	cmd.MarkFlagsMutuallyExclusive("text", "file", "image")

	return cmd
}

func runGenerate(ctx context.Context, opts generateOptions, stdout io.Writer, stdin io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}

	em, err := emitter.NewRegistry().Get(opts.format)
	if err != nil {
		return fmt.Errorf("unknown format %q, available: %s", opts.format, strings.Join(emitter.NewRegistry().List(), ", "))
	}
	if opts.format == "xmind" && opts.output == "" {
		return fmt.Errorf("xmind output is a binary archive, use --output")
	}

	profile, err := loadProfile(opts)
	if err != nil {
		return err
	}

	sel, err := profileSelection(profile)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	prompt := llm.PromptOptions{
		Language:   profile.Language,
		EdgeCases:  profile.Generation.EdgeCases && !opts.noEdge,
		ErrorPaths: profile.Generation.ErrorPaths && !opts.noErrors,
	}
	gen := generator.NewGenerator(llm.NewAdapterFromConfig(cfg.LLM, store), prompt)

	var res *generator.Result
	switch {
	case opts.image != "":
		path, err := validateFilePath(opts.image)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		res, err = gen.FromImage(ctx, data, mime.TypeByExtension(strings.ToLower(filepath.Ext(path))), opts.note, sel)
		if err != nil {
			return err
		}

	default:
		text, err := requirementText(opts, stdin)
		if err != nil {
			return err
		}
		res, err = gen.FromText(ctx, text, sel)
		if err != nil {
			return err
		}
	}

	log.Info().
		Str("feature", res.Suite.FeatureName).
		Int("scenarios", res.Suite.Len()).
		Str("provider", string(res.Provider)).
		Str("model", res.Model).
		Msg("test suite generated")

	return writeOutput(em, res, opts.output, stdout)
}

// loadProfile reads the generation profile and applies flag overrides
func loadProfile(opts generateOptions) (*config.ProfileConfig, error) {
	profile, err := config.LoadProfileConfig(opts.profileDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", config.ProfileFileName, err)
	}

	profile.Merge(&config.ProfileConfig{
		Language: opts.language,
		Provider: config.ProviderConfig{
			Kind:     opts.provider,
			Model:    opts.model,
			Endpoint: opts.endpoint,
		},
	})
	return profile, nil
}

func profileSelection(profile *config.ProfileConfig) (llm.Selection, error) {
	sel := llm.Selection{
		Model:    profile.Provider.Model,
		Endpoint: profile.Provider.Endpoint,
	}
	if profile.Provider.Kind != "" {
		kind, err := llm.ParseProviderKind(profile.Provider.Kind)
		if err != nil {
			return sel, err
		}
		sel.Kind = kind
	}
	return sel, nil
}

func requirementText(opts generateOptions, stdin io.Reader) (string, error) {
	switch {
	case opts.text != "":
		return opts.text, nil
	case opts.file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case opts.file != "":
		path, err := validateFilePath(opts.file)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read requirements: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("one of --text, --file or --image is required")
}

// writeOutput emits the suite to stdout, a file, or a directory using the format's file name
func writeOutput(em emitter.Emitter, res *generator.Result, output string, stdout io.Writer) error {
	if output == "" {
		return em.Emit(stdout, res.Suite)
	}

	path := output
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		path = filepath.Join(output, em.FileName(res.Suite))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := em.Emit(f, res.Suite); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", em.Name(), err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Wrote %d test cases to %s\n", res.Suite.Len(), path)
	return nil
}
