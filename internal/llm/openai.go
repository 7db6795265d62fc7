package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"opscord.app/pipeline/internal/model"
)

type openaiClient struct {
	client  openai.Client
	model   string
	timeout time.Duration

	summarySchema string
	triageSchema  string
}

// NewOpenAIClient builds a Client backed by the OpenAI chat completions API.
func NewOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	mdl := cfg.Model
	if mdl == "" {
		mdl = "gpt-4o-mini"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &openaiClient{
		client:        openai.NewClient(opts...),
		model:         mdl,
		timeout:       timeout,
		summarySchema: reflectSchema(&model.PRSummary{}),
		triageSchema:  reflectSchema(&model.IssueTriage{}),
	}, nil
}

func (c *openaiClient) Summarize(ctx context.Context, req SummarizeRequest) (*model.PRSummary, error) {
	diff := Truncate(req.Diff, maxDiffChars)
	body := req.Body
	if body == "" {
		body = "No description provided"
	}

	prompt := fmt.Sprintf(`You are an expert code reviewer analyzing a GitHub pull request.

PR Title: %s
PR Description: %s
Files Changed: %d

Code Diff (truncated):
%s

Respond with a single JSON object matching this schema:
%s

"complexity" must be one of "low", "medium" or "high". Be concise and
actionable. Focus on what matters most to reviewers.`,
		req.Title, body, req.FilesChanged, diff, c.summarySchema)

	content, err := c.complete(ctx, prompt, 1024)
	if err != nil {
		return nil, fmt.Errorf("summarize pr: %w", err)
	}

	summary := ParseSummary(content)
	if summary.Summary == "" {
		// Model ignored the schema entirely. The raw text is still
		// better than dropping the result.
		slog.WarnContext(ctx, "summary response had no parsable json, using raw text")
		summary.Summary = Truncate(content, 500)
	}
	return summary, nil
}

func (c *openaiClient) Categorize(ctx context.Context, title, body string) (*model.IssueTriage, error) {
	if body == "" {
		body = "No description"
	}

	prompt := fmt.Sprintf(`Categorize this GitHub issue and assign a severity level.

Title: %s
Body: %s

Respond with a single JSON object matching this schema:
%s

"category" must be one of bug, enhancement, documentation, question or
infrastructure; "severity" one of low, medium or high.`,
		title, body, c.triageSchema)

	content, err := c.complete(ctx, prompt, 256)
	if err != nil {
		return nil, fmt.Errorf("categorize issue: %w", err)
	}

	return ParseTriage(content), nil
}

func (c *openaiClient) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxCompletionTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	slog.DebugContext(ctx, "completion finished",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason)

	return resp.Choices[0].Message.Content, nil
}

func reflectSchema(v any) string {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	data, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return "{}"
	}
	return string(data)
}
