package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/foxhui123/AutoQA/internal/llm"
	"github.com/foxhui123/AutoQA/internal/suite"
)

// ErrInvalidImage is returned for image input that is not a JPG, PNG or WebP picture
var ErrInvalidImage = errors.New("image must be a JPG, PNG or WebP file")

// AcceptedImageTypes lists the image MIME types a flowchart may use
var AcceptedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// Model is the provider layer the generator talks to
type Model interface {
	Generate(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Generator turns requirements or flowcharts into test suites
type Generator struct {
	model Model
	opts  llm.PromptOptions
}

// NewGenerator creates a new test generator
func NewGenerator(model Model, opts llm.PromptOptions) *Generator {
	return &Generator{
		model: model,
		opts:  opts,
	}
}

// Result is a parsed suite with the call that produced it
type Result struct {
	Suite    *suite.TestSuite
	Provider llm.ProviderKind
	Model    string
	Duration time.Duration
}

// FromText generates a suite from requirement text
func (g *Generator) FromText(ctx context.Context, requirements string, sel llm.Selection) (*Result, error) {
	prompt, err := llm.RequirementPrompt(requirements, g.opts)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("provider", string(sel.Kind)).
		Int("chars", len([]rune(requirements))).
		Msg("generating test cases from requirements")

	return g.run(ctx, &llm.Request{
		Input:    llm.InputText,
		Prompt:   prompt,
		Schema:   llm.TestSuiteSchema(),
		Provider: sel,
	})
}

// FromImage generates a suite from a flowchart image. An empty mimeType is sniffed from the data.
func (g *Generator) FromImage(ctx context.Context, image []byte, mimeType, additionalText string, sel llm.Selection) (*Result, error) {
	mimeType, err := ImageType(image, mimeType)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("provider", string(sel.Kind)).
		Str("mime_type", mimeType).
		Int("bytes", len(image)).
		Msg("generating test cases from flowchart")

	return g.run(ctx, &llm.Request{
		Input:    llm.InputImage,
		Prompt:   llm.FlowchartPrompt(additionalText, g.opts),
		Image:    &llm.Image{Data: image, MIMEType: mimeType},
		Schema:   llm.TestSuiteSchema(),
		Provider: sel,
	})
}

func (g *Generator) run(ctx context.Context, req *llm.Request) (*Result, error) {
	resp, err := g.model.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	s, err := suite.Parse(resp.Content)
	if err != nil {
		log.Warn().
			Err(err).
			Str("provider", string(resp.Provider)).
			Str("model", resp.Model).
			Msg("model output rejected")
		return nil, err
	}

	log.Info().
		Str("provider", string(resp.Provider)).
		Str("model", resp.Model).
		Str("feature", s.FeatureName).
		Int("scenarios", s.Len()).
		Dur("duration", resp.Duration).
		Msg("generated test suite")

	if dups := s.DuplicateIDs(); len(dups) > 0 {
		log.Warn().Strs("ids", dups).Msg("generated suite has duplicate scenario ids")
	}

	return &Result{
		Suite:    s,
		Provider: resp.Provider,
		Model:    resp.Model,
		Duration: resp.Duration,
	}, nil
}

// ImageType validates image data and returns its MIME type
func ImageType(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	mimeType := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if mimeType == "image/jpg" {
		mimeType = "image/jpeg"
	}

	for _, accepted := range AcceptedImageTypes {
		if mimeType == accepted {
			return mimeType, nil
		}
	}
	return "", fmt.Errorf("%w: got %s", ErrInvalidImage, mimeType)
}
