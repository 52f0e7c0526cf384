package domain

import "context"

// AnalysisResult is the structured data the multimodal model extracts from a
// set of question images. Question and Explanation may embed Markdown and
// LaTeX; this layer treats them as opaque strings.
type AnalysisResult struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
	Subject      string   `json:"subject"`
	Topic        string   `json:"topic"`
}

// Validate checks that the model returned a usable result.
func (r *AnalysisResult) Validate() error {
	if r.Question == "" {
		return NewAnalysisError("analysis returned an empty question", nil)
	}
	if len(r.Options) == 0 {
		return NewAnalysisError("analysis returned no options", nil)
	}
	if r.CorrectIndex < 0 || r.CorrectIndex >= len(r.Options) {
		return NewAnalysisError("analysis returned an out-of-range correct index", nil)
	}
	return nil
}

// ApplyDefaults fills classification fields the model left blank.
func (r *AnalysisResult) ApplyDefaults() {
	if r.Subject == "" {
		r.Subject = DefaultSubject
	}
	if r.Topic == "" {
		r.Topic = DefaultTopic
	}
}

// ChatMessage is one turn of a follow-up conversation about a record.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// Analyzer is the external multimodal analysis collaborator. Failures are
// classified: rate-limit signals carry the ErrRateLimited code and may be
// retried, anything else is permanent.
type Analyzer interface {
	// Analyze extracts structured question data from one or more images.
	Analyze(ctx context.Context, images [][]byte) (*AnalysisResult, error)

	// FollowUp answers an open-ended question grounded in a prior
	// conversation about a record.
	FollowUp(ctx context.Context, history []ChatMessage, message string) (string, error)
}
