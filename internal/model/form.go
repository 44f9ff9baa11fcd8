package model

import "time"

// Form is one submission of a template by a user.
type Form struct {
	ID            string    `json:"id"`
	TemplateID    string    `json:"templateId"`
	UserID        string    `json:"userId"`
	SubmitterName string    `json:"submitterName"`
	CreatedAt     time.Time `json:"createdAt"`
	Answers       []Answer  `json:"answers"`
}

// Answer returns the value stored for questionID and whether it exists.
func (f *Form) Answer(questionID string) (string, bool) {
	for _, a := range f.Answers {
		if a.QuestionID == questionID {
			return a.Value, true
		}
	}
	return "", false
}

// Answer is one (question, value) pair. Values are always stored as text.
type Answer struct {
	ID         string `json:"id"`
	FormID     string `json:"formId"`
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

// AnswerInput is a submitted answer before validation. Value keeps the
// JSON type it arrived with (string, number or bool).
type AnswerInput struct {
	QuestionID string `json:"questionId"`
	Value      any    `json:"value"`
}
