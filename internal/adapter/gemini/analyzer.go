// Package gemini implements the domain.Analyzer port against Google's
// multimodal models through langchaingo.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mockmaster/internal/config"
	"mockmaster/internal/domain"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"
)

const analysisPrompt = `Analyze the provided image(s) of a mock exam question.

TASKS:
1. Extract the Question text, Options, and Explanation. In case of math extract EXACTLY accurate math question.
2. FORMATTING: You MUST preserve the visual structure of the question.
   - If the question contains statements (e.g., "Statement I:", "Statement II:"), put them on separate lines.
   - If there are lists or bullet points in the image, use Markdown lists.
   - If there are bold headers in the image, use Markdown bold (**text**).
   - Use double newlines (\n\n) to create visible paragraph breaks between distinct parts of the question.
3. Identify the Correct Answer, Subject, and Topic.

CRITICAL MATH FORMATTING RULES:
- You MUST use LaTeX for all mathematical expressions.
- Enclose INLINE math in single dollar signs (e.g., $x^2$).
- Enclose BLOCK math in double dollar signs (e.g., $$ \frac{a}{b} $$).
- Output raw JSON. Double-escape backslashes for LaTeX (e.g., "\\frac").

Return ONLY raw JSON:
{
  "question": "The question text with **Markdown** formatting and $LaTeX$ math...",
  "options": ["Option A...", "Option B..."],
  "correctIndex": 0,
  "explanation": "Explanation with **Markdown** structure and math...",
  "subject": "Maths",
  "topic": "Algebra"
}`

const tutorSystemPrompt = "You are a helpful tutor. Always use LaTeX formatting for math equations, " +
	"enclosed in single $ for inline and double $$ for block equations."

// Analyzer talks to the Gemini API. It satisfies domain.Analyzer.
type Analyzer struct {
	llm    *googleai.GoogleAI
	model  string
	logger *zap.Logger
}

// NewAnalyzer creates the Gemini-backed analyzer from explicit
// configuration; nothing is read from ambient state.
func NewAnalyzer(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewInvalidInputError("Gemini API key missing. Set it in Settings.")
	}
	if cfg.Model == "" {
		return nil, domain.NewInvalidInputError("Gemini model name cannot be empty")
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, domain.NewAnalysisError("failed to initialize Gemini client", err)
	}

	logger.Info("Initialized Gemini analyzer", zap.String("model", cfg.Model))
	return &Analyzer{llm: llm, model: cfg.Model, logger: logger}, nil
}

// Analyze implements domain.Analyzer
func (a *Analyzer) Analyze(ctx context.Context, images [][]byte) (*domain.AnalysisResult, error) {
	if len(images) == 0 {
		return nil, domain.NewInvalidInputError("no images to analyze")
	}

	parts := make([]llms.ContentPart, 0, len(images)+1)
	parts = append(parts, llms.TextPart(analysisPrompt))
	for _, img := range images {
		parts = append(parts, llms.BinaryPart("image/jpeg", img))
	}

	resp, err := a.llm.GenerateContent(ctx, []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: parts},
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewAnalysisError("Gemini returned no candidates", nil)
	}

	result, err := parseAnalysisResponse(resp.Choices[0].Content)
	if err != nil {
		a.logger.Error("Failed to parse Gemini analysis response",
			zap.Error(err),
			zap.String("raw_response", truncate(resp.Choices[0].Content, 500)))
		return nil, err
	}

	a.logger.Debug("Gemini analysis succeeded",
		zap.String("subject", result.Subject),
		zap.String("topic", result.Topic),
		zap.Int("options", len(result.Options)))
	return result, nil
}

// FollowUp implements domain.Analyzer
func (a *Analyzer) FollowUp(ctx context.Context, history []domain.ChatMessage, message string) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, tutorSystemPrompt))
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == "model" {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, msg.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, message))

	resp, err := a.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewAnalysisError("Gemini returned no candidates", nil)
	}
	return resp.Choices[0].Content, nil
}

// parseAnalysisResponse strips the code fences Gemini sometimes adds,
// unmarshals the JSON payload and validates the result.
func parseAnalysisResponse(raw string) (*domain.AnalysisResult, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	// Some responses wrap the JSON in prose; cut to the outermost object.
	if start, end := strings.Index(clean, "{"), strings.LastIndex(clean, "}"); start != -1 && end > start {
		clean = clean[start : end+1]
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(clean), &result); err != nil {
		return nil, domain.NewAnalysisError("Gemini returned malformed JSON", err)
	}

	result.ApplyDefaults()
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// classifyError separates the transient too-many-requests signal (retried
// with backoff by the pipeline) from permanent failures.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota exceeded") {
		return domain.NewRateLimitedError(err)
	}
	return domain.NewAnalysisError(fmt.Sprintf("Gemini analysis failed: %v", err), err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Compile-time check that Analyzer satisfies the analyzer port.
var _ domain.Analyzer = (*Analyzer)(nil)
