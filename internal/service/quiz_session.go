package service

import (
	"sync"

	"mockmaster/internal/domain"
)

// ResponseStatus is the palette state of one question within a session.
type ResponseStatus string

const (
	ResponseNotVisited     ResponseStatus = "not_visited"
	ResponseNotAnswered    ResponseStatus = "not_answered"
	ResponseAnswered       ResponseStatus = "answered"
	ResponseMarked         ResponseStatus = "marked"
	ResponseMarkedAnswered ResponseStatus = "marked_answered"
)

// Response tracks the user's interaction with one question.
type Response struct {
	SelectedOption *int
	Status         ResponseStatus
}

// Scoring: +2 for a correct answer, -0.25 for a wrong one, unanswered
// questions score zero.
const (
	correctMarks = 2.0
	wrongMarks   = -0.25
)

// Session is an ephemeral, in-memory quiz over a sampled set of records.
// It never touches persistence; abandoning it loses its state.
type Session struct {
	mu        sync.Mutex
	questions []*domain.QuestionRecord
	responses []Response
	current   int
	timeLeft  int
	submitted bool
	result    *Result
}

func newSession(questions []*domain.QuestionRecord) *Session {
	s := &Session{
		questions: questions,
		responses: make([]Response, len(questions)),
		timeLeft:  len(questions) * SecondsPerQuestion,
	}
	for i := range s.responses {
		s.responses[i].Status = ResponseNotVisited
	}
	// The first question is on screen from the start.
	s.responses[0].Status = ResponseNotAnswered
	return s
}

// Len returns the number of questions in the session.
func (s *Session) Len() int {
	return len(s.questions)
}

// Current returns the index and record of the question on screen.
func (s *Session) Current() (int, *domain.QuestionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.questions[s.current]
}

// TimeLeft returns the remaining countdown in seconds.
func (s *Session) TimeLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeLeft
}

// Responses returns a snapshot of the per-question palette state.
func (s *Session) Responses() []Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Response, len(s.responses))
	copy(out, s.responses)
	return out
}

// JumpTo navigates to any question index. Visiting a question for the
// first time moves it from not_visited to not_answered.
func (s *Session) JumpTo(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return domain.NewInvalidInputError("session already submitted")
	}
	if idx < 0 || idx >= len(s.questions) {
		return domain.NewInvalidInputError("question index out of range")
	}
	s.current = idx
	s.visitLocked(idx)
	return nil
}

// SelectOption records an option choice on the current question. Selection
// alone does not change the palette status.
func (s *Session) SelectOption(option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return domain.NewInvalidInputError("session already submitted")
	}
	q := s.questions[s.current]
	if option < 0 || option >= len(q.Options) {
		return domain.NewInvalidInputError("option index out of range")
	}
	s.responses[s.current].SelectedOption = &option
	return nil
}

// ClearResponse drops the current selection and resets the status to
// not_answered, whatever it was before.
func (s *Session) ClearResponse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return
	}
	s.responses[s.current].SelectedOption = nil
	s.responses[s.current].Status = ResponseNotAnswered
}

// SaveAndNext marks the current question answered (or not_answered when
// nothing is selected) and advances. Advancing past the last question is a
// no-op.
func (s *Session) SaveAndNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return
	}
	if s.responses[s.current].SelectedOption != nil {
		s.responses[s.current].Status = ResponseAnswered
	} else {
		s.responses[s.current].Status = ResponseNotAnswered
	}
	s.advanceLocked()
}

// MarkForReview marks the current question marked_answered (or marked when
// nothing is selected) and advances.
func (s *Session) MarkForReview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return
	}
	if s.responses[s.current].SelectedOption != nil {
		s.responses[s.current].Status = ResponseMarkedAnswered
	} else {
		s.responses[s.current].Status = ResponseMarked
	}
	s.advanceLocked()
}

// Tick decrements the countdown by one second. Reaching zero submits the
// session automatically; Tick reports whether the session is now submitted.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return true
	}
	s.timeLeft--
	if s.timeLeft <= 0 {
		s.timeLeft = 0
		s.submitLocked()
	}
	return s.submitted
}

// Submit ends the session and computes the result. Submitting twice
// returns the same result.
func (s *Session) Submit() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitLocked()
	return s.result
}

// Result returns the scoring outcome, or nil while the session is running.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) visitLocked(idx int) {
	if s.responses[idx].Status == ResponseNotVisited {
		s.responses[idx].Status = ResponseNotAnswered
	}
}

func (s *Session) advanceLocked() {
	if s.current < len(s.questions)-1 {
		s.current++
		s.visitLocked(s.current)
	}
}

func (s *Session) submitLocked() {
	if s.submitted {
		return
	}
	s.submitted = true
	s.result = s.scoreLocked()
}

// Result is the scoring outcome of a submitted session.
type Result struct {
	Score     float64
	Correct   int
	Wrong     int
	Skipped   int
	Questions []QuestionResult
}

// QuestionResult pairs one question with the user's response for the
// detailed analysis view.
type QuestionResult struct {
	Question       *domain.QuestionRecord
	SelectedOption *int
	Correct        bool
	Skipped        bool
}

func (s *Session) scoreLocked() *Result {
	result := &Result{Questions: make([]QuestionResult, 0, len(s.questions))}

	for i, q := range s.questions {
		resp := s.responses[i]
		qr := QuestionResult{Question: q, SelectedOption: resp.SelectedOption}

		if resp.SelectedOption == nil {
			qr.Skipped = true
			result.Skipped++
		} else if *resp.SelectedOption == q.CorrectIndex {
			qr.Correct = true
			result.Correct++
		} else {
			result.Wrong++
		}
		result.Questions = append(result.Questions, qr)
	}

	result.Score = float64(result.Correct)*correctMarks + float64(result.Wrong)*wrongMarks
	return result
}
