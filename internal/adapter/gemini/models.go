package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"mockmaster/internal/domain"
)

const modelsEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// ModelInfo describes one selectable Gemini model.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// ListModels fetches the Gemini models usable for analysis, for the
// settings screen's model picker. langchaingo exposes no discovery call, so
// this hits the REST endpoint directly.
func ListModels(ctx context.Context, apiKey string) ([]ModelInfo, error) {
	if apiKey == "" {
		return nil, domain.NewInvalidInputError("Gemini API key missing. Set it in Settings.")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		modelsEndpoint+"?key="+url.QueryEscape(apiKey), nil)
	if err != nil {
		return nil, domain.NewInternalError("failed to build models request", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, domain.NewAnalysisError("failed to fetch available models", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("models endpoint returned status %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, domain.NewRateLimitedError(fmt.Errorf("%s", msg))
		}
		return nil, domain.NewAnalysisError(msg, nil)
	}

	var payload struct {
		Models []struct {
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			Description                string   `json:"description"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.NewAnalysisError("failed to decode models response", err)
	}

	var models []ModelInfo
	for _, m := range payload.Models {
		if !strings.Contains(m.Name, "gemini") || !supportsGenerateContent(m.SupportedGenerationMethods) {
			continue
		}
		id := strings.TrimPrefix(m.Name, "models/")
		displayName := m.DisplayName
		if displayName == "" {
			displayName = id
		}
		models = append(models, ModelInfo{
			ID:          id,
			DisplayName: displayName,
			Description: m.Description,
		})
	}
	return models, nil
}

func supportsGenerateContent(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}
