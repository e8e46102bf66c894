package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/justestif/moodlens/internal/config"
	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/logging"
)

// responder sends one request and returns the model's output text.
type responder interface {
	respond(ctx context.Context, params responses.ResponseNewParams) (string, error)
}

type responsesAPI struct {
	client *openai.Client
}

func (r responsesAPI) respond(ctx context.Context, params responses.ResponseNewParams) (string, error) {
	resp, err := r.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}

// Provider is a Suggester backed by the OpenAI Responses API, either
// directly or through an Azure OpenAI deployment.
type Provider struct {
	api     responder
	name    string
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAI creates a Provider for api.openai.com.
func NewOpenAI(apiKey, model string, timeout time.Duration) *Provider {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	)
	return newProvider(responsesAPI{client: &client}, config.ProviderOpenAI, model, timeout)
}

// NewAzure creates a Provider for an Azure OpenAI deployment. The
// deployment name is sent as the model.
func NewAzure(endpoint, apiKey, deployment, apiVersion string, timeout time.Duration) *Provider {
	client := openai.NewClient(
		azure.WithEndpoint(strings.TrimRight(endpoint, "/"), apiVersion),
		azure.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	)
	return newProvider(responsesAPI{client: &client}, config.ProviderAzure, deployment, timeout)
}

// FromConfig returns the configured Suggester, or Disabled when no provider
// is available.
func FromConfig(cfg *config.Config) Suggester {
	switch cfg.ResolveProvider() {
	case config.ProviderAzure:
		return NewAzure(cfg.AI.AzureEndpoint, cfg.AI.AzureAPIKey, cfg.AI.AzureDeployment, cfg.AI.AzureAPIVersion, cfg.AITimeout())
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.AI.OpenAIKey, cfg.AI.Model, cfg.AITimeout())
	}
	return Disabled{}
}

func newProvider(api responder, name, model string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &Provider{
		api:     api,
		name:    name,
		model:   model,
		timeout: timeout,
		logger:  logging.Named("ai").With("provider", name),
	}
}

// Suggest asks the model for a category. Any transport, decoding or
// validation failure maps to ErrUnavailable; exceeding the timeout maps to
// ErrTimeout.
func (p *Provider) Suggest(ctx context.Context, meta TrackMeta, f emotion.Features) (emotion.Suggestion, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := responses.ResponseNewParams{
		Model:        p.model,
		Instructions: openai.String(instructions),
		Temperature:  openai.Float(0),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(buildInput(meta, f), responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "EmotionSuggestion",
					Schema:      suggestionSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Emotion category and mood score"),
					Type:        "json_schema",
				},
			},
		},
	}

	out, err := p.api.respond(callCtx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			p.logger.Debug("suggestion timed out", "track", meta.Name, "timeout", p.timeout)
			return emotion.Suggestion{}, ErrTimeout
		}
		p.logger.Debug("suggestion failed", "track", meta.Name, "error", err)
		return emotion.Suggestion{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s, err := decodeSuggestion(out)
	if err != nil {
		p.logger.Debug("invalid suggestion", "track", meta.Name, "error", err)
		return emotion.Suggestion{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s, nil
}

// decodeSuggestion parses model output, tolerating text around the JSON
// object, and validates the category.
func decodeSuggestion(out string) (emotion.Suggestion, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start == -1 || end < start {
		return emotion.Suggestion{}, fmt.Errorf("no JSON object in model output (len=%d)", len(out))
	}

	var raw struct {
		Category  string   `json:"category"`
		MoodScore *float64 `json:"moodScore"`
	}
	if err := json.Unmarshal([]byte(out[start:end+1]), &raw); err != nil {
		return emotion.Suggestion{}, fmt.Errorf("decoding model output: %w", err)
	}

	category, ok := emotion.ParseCategory(strings.TrimSpace(raw.Category))
	if !ok {
		return emotion.Suggestion{}, fmt.Errorf("unknown category %q", raw.Category)
	}

	s := emotion.Suggestion{Category: category}
	if raw.MoodScore != nil && !math.IsNaN(*raw.MoodScore) {
		score := emotion.Clamp(*raw.MoodScore)
		s.MoodScore = &score
	}
	return s, nil
}
