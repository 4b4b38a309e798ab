package ai

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
)

const (
	TypeOpenAI           = "openai"
	TypeAnthropic        = "anthropic"
	TypeGemini           = "gemini"
	TypeOpenAICompatible = "openai-compatible"
	TypeOpenRouter       = "openrouter"

	defaultTimeout        = 30 * time.Second
	defaultMaxTokens      = 1024
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
	defaultGeminiModel    = "gemini-1.5-flash"
)

var ErrEmptyResponse = errors.New("empty response from AI")

// Request is one system + user completion.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a bare JSON object. OpenAI, openai-compatible and Gemini
	// enforce it; Anthropic ignores it.
	JSON bool
	// Model overrides the provider default for this call.
	Model string
}

// Completer is the only capability the pipeline needs from a language model.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and configures one provider.
type Config struct {
	Type     string
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// New builds the Completer for cfg.Type.
func New(cfg Config) (Completer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	switch NormalizeType(cfg.Type) {
	case TypeOpenAICompatible, TypeOpenRouter:
		return newCompatible(cfg)
	case TypeGemini:
		return newGemini(cfg)
	case TypeAnthropic, TypeOpenAI:
		return newJetify(cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider type %q", cfg.Type)
	}
}

// NormalizeType folds spelling variants ("OpenAI_Compatible", "google") into canonical names.
func NormalizeType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	switch t {
	case "", "openai":
		return TypeOpenAI
	case "openaicompatible", "openai-compatible":
		return TypeOpenAICompatible
	case "google", "gemini", "google-gemini":
		return TypeGemini
	case "claude":
		return TypeAnthropic
	}
	return t
}

// jetifyProvider drives OpenAI and Anthropic through go.jetify.com/ai.
type jetifyProvider struct {
	kind    string
	apiKey  string
	base    string
	model   string
	timeout time.Duration
}

func newJetify(cfg Config) (*jetifyProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("AI provider api key is empty")
	}
	kind := NormalizeType(cfg.Type)
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
		if kind == TypeAnthropic {
			model = defaultAnthropicModel
		}
	}
	return &jetifyProvider{
		kind:    kind,
		apiKey:  apiKey,
		base:    strings.TrimSpace(cfg.Endpoint),
		model:   model,
		timeout: cfg.Timeout,
	}, nil
}

func (p *jetifyProvider) Complete(ctx context.Context, req Request) (string, error) {
	modelID := p.model
	if m := strings.TrimSpace(req.Model); m != "" {
		modelID = m
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	opts := []jetai.GenerateOption{
		jetai.WithModel(p.languageModel(modelID)),
		jetai.WithMaxOutputTokens(maxTokens),
		jetai.WithTemperature(req.Temperature),
	}
	if format := p.responseFormat(req); format != nil {
		opts = append(opts, jetai.WithResponseFormat(format))
	}
	resp, err := jetai.GenerateText(ctx, buildPromptMessages(req.System, req.Prompt), opts...)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", p.kind, err)
	}
	return extractText(resp)
}

// responseFormat maps req.JSON to a json_object response format. Anthropic has no
// such mode, so its requests rely on the prompt alone.
func (p *jetifyProvider) responseFormat(req Request) *jetapi.ResponseFormat {
	if !req.JSON || p.kind != TypeOpenAI {
		return nil
	}
	return &jetapi.ResponseFormat{Type: "json"}
}

func (p *jetifyProvider) languageModel(modelID string) jetapi.LanguageModel {
	if p.kind == TypeAnthropic {
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(p.apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if p.base != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(p.base, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client))
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(p.apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(p.base); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}
	client := openaiclient.NewClient(opts...)
	return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client))
}

func buildPromptMessages(systemPrompt, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: systemPrompt})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractText(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		if path == "" {
			path = "/v1"
		} else {
			path += "/v1"
		}
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
