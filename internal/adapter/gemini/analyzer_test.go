package gemini

import (
	"errors"
	"testing"

	"mockmaster/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysisResponseRawJSON(t *testing.T) {
	raw := `{
		"question": "What is $2^3$?",
		"options": ["6", "8"],
		"correctIndex": 1,
		"explanation": "Two cubed is eight.",
		"subject": "Maths",
		"topic": "Algebra"
	}`

	result, err := parseAnalysisResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "What is $2^3$?", result.Question)
	assert.Equal(t, []string{"6", "8"}, result.Options)
	assert.Equal(t, 1, result.CorrectIndex)
	assert.Equal(t, "Maths", result.Subject)
}

func TestParseAnalysisResponseStripsCodeFences(t *testing.T) {
	raw := "```json\n" +
		`{"question": "Q", "options": ["A", "B"], "correctIndex": 0, "explanation": "", "subject": "GS", "topic": "Polity"}` +
		"\n```"

	result, err := parseAnalysisResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Q", result.Question)
	assert.Equal(t, 0, result.CorrectIndex)
}

func TestParseAnalysisResponseCutsSurroundingProse(t *testing.T) {
	raw := `Sure, here is the extracted question:
{"question": "Q", "options": ["A", "B"], "correctIndex": 1, "explanation": "E", "subject": "", "topic": ""}
Let me know if you need anything else.`

	result, err := parseAnalysisResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Q", result.Question)
	// Blank classification fields fall back to the defaults.
	assert.Equal(t, domain.DefaultSubject, result.Subject)
	assert.Equal(t, domain.DefaultTopic, result.Topic)
}

func TestParseAnalysisResponseMalformedJSON(t *testing.T) {
	_, err := parseAnalysisResponse(`{"question": "Q", "options": [`)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrAnalysisFailed))
}

func TestParseAnalysisResponseRejectsOutOfRangeIndex(t *testing.T) {
	raw := `{"question": "Q", "options": ["A", "B"], "correctIndex": 5, "explanation": "", "subject": "", "topic": ""}`

	_, err := parseAnalysisResponse(raw)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrAnalysisFailed))
}

func TestParseAnalysisResponseRejectsEmptyQuestion(t *testing.T) {
	raw := `{"question": "", "options": ["A"], "correctIndex": 0, "explanation": "", "subject": "", "topic": ""}`

	_, err := parseAnalysisResponse(raw)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrAnalysisFailed))
}

func TestClassifyErrorRateLimitMarkers(t *testing.T) {
	rateLimited := []string{
		"googleapi: Error 429: Resource has been exhausted",
		"RESOURCE_EXHAUSTED: quota limit reached",
		"rate limit exceeded, slow down",
		"too many requests",
		"Quota exceeded for quota metric",
	}
	for _, msg := range rateLimited {
		err := classifyError(errors.New(msg))
		assert.True(t, domain.IsRateLimited(err), "expected rate-limited classification for %q", msg)
	}
}

func TestClassifyErrorPermanentFailures(t *testing.T) {
	permanent := []string{
		"googleapi: Error 400: API key not valid",
		"context deadline exceeded",
		"connection refused",
	}
	for _, msg := range permanent {
		err := classifyError(errors.New(msg))
		assert.False(t, domain.IsRateLimited(err), "%q must not be retried", msg)
		assert.True(t, domain.HasCode(err, domain.ErrAnalysisFailed))
	}
}

func TestClassifyErrorNil(t *testing.T) {
	assert.NoError(t, classifyError(nil))
}

func TestSupportsGenerateContent(t *testing.T) {
	assert.True(t, supportsGenerateContent([]string{"countTokens", "generateContent"}))
	assert.False(t, supportsGenerateContent([]string{"embedContent"}))
	assert.False(t, supportsGenerateContent(nil))
}
