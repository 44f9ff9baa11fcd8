package model

import "time"

// Topic is the fixed category enum for templates.
type Topic string

const (
	TopicEducation Topic = "Education"
	TopicQuiz      Topic = "Quiz"
	TopicOther     Topic = "Other"
)

// Valid reports whether t is one of the known topics.
func (t Topic) Valid() bool {
	switch t {
	case TopicEducation, TopicQuiz, TopicOther:
		return true
	}
	return false
}

// QuestionType enumerates the kinds of question a template can hold.
// The two fixed kinds are injected by the system and never requested.
type QuestionType string

const (
	QuestionSingleLine      QuestionType = "single_line"
	QuestionMultiLine       QuestionType = "multi_line"
	QuestionPositiveInteger QuestionType = "positive_integer"
	QuestionCheckbox        QuestionType = "checkbox"
	QuestionFixedUser       QuestionType = "fixed_user"
	QuestionFixedDate       QuestionType = "fixed_date"
)

// Valid reports whether q is any known question type, fixed kinds included.
func (q QuestionType) Valid() bool {
	return q.UserSelectable() || q.Fixed()
}

// Fixed reports whether q is one of the system-injected kinds.
func (q QuestionType) Fixed() bool {
	return q == QuestionFixedUser || q == QuestionFixedDate
}

// UserSelectable reports whether a template author may request q.
func (q QuestionType) UserSelectable() bool {
	switch q {
	case QuestionSingleLine, QuestionMultiLine, QuestionPositiveInteger, QuestionCheckbox:
		return true
	}
	return false
}

// Fixed question orders. They sort before every user question.
const (
	FixedUserOrder = -2
	FixedDateOrder = -1
)

// Template is a reusable form definition together with its owned children.
type Template struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Topic       Topic     `json:"topic"`
	ImageURL    string    `json:"imageUrl"`
	IsPublic    bool      `json:"isPublic"`
	CreatedBy   string    `json:"createdBy"`
	CreatorName string    `json:"creatorName"`
	CreatedAt   time.Time `json:"createdAt"`

	Questions []Question `json:"questions"`
	Tags      []string   `json:"tags"`
	// Access holds the ids of users explicitly granted access.
	Access    []string `json:"access"`
	LikeCount int      `json:"likeCount"`
	FormCount int      `json:"formCount"`
	// LikedByMe is set per request for the calling actor.
	LikedByMe bool `json:"likedByMe"`
}

// HasGrant reports whether userID holds an explicit access grant.
func (t *Template) HasGrant(userID string) bool {
	for _, id := range t.Access {
		if id == userID {
			return true
		}
	}
	return false
}

// Question returns the question with the given id, or nil.
func (t *Template) Question(id string) *Question {
	for i := range t.Questions {
		if t.Questions[i].ID == id {
			return &t.Questions[i]
		}
	}
	return nil
}

// FixedQuestion returns the template's question of the given fixed kind, or nil.
func (t *Template) FixedQuestion(kind QuestionType) *Question {
	for i := range t.Questions {
		if t.Questions[i].Fixed && t.Questions[i].Type == kind {
			return &t.Questions[i]
		}
	}
	return nil
}

// Question is one field definition within a template.
type Question struct {
	ID         string       `json:"id"`
	TemplateID string       `json:"templateId"`
	Type       QuestionType `json:"type"`
	Title      string       `json:"title"`
	Order      int          `json:"order"`
	Fixed      bool         `json:"fixed"`
	Required   bool         `json:"required"`
}

// FieldInput is one requested question in a template creation request.
type FieldInput struct {
	Type     QuestionType `json:"type"`
	Title    string       `json:"title"`
	Required bool         `json:"required"`
}

// QuestionInput adds one question to an existing template. A nil Order
// appends after the last user question; an explicit one inserts there and
// is capped at the append position.
type QuestionInput struct {
	Type     QuestionType `json:"type"`
	Title    string       `json:"title"`
	Required bool         `json:"required"`
	Order    *int         `json:"order"`
}

// TemplateFilter narrows template listings.
type TemplateFilter struct {
	Topic     Topic
	Tag       string
	Search    string
	CreatedBy string
	// Sort is "latest" (default) or "popular".
	Sort   string
	Limit  int
	Offset int
}
