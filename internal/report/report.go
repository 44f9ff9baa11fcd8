// Package report computes per-question statistics over a template's forms
// and flattens forms into CSV.
//
// Everything here is pure: callers load the template and its forms and
// pass them in. Stored answer values are text; numeric and boolean
// meaning is recovered here, not in storage.
package report

import (
	"strconv"
	"strings"

	"github.com/sakif/formbuilder/internal/model"
)

// NumericStats summarises a positive_integer question. Values that do
// not parse as numbers are left out of Count.
type NumericStats struct {
	QuestionID string  `json:"questionId"`
	Title      string  `json:"title"`
	Count      int     `json:"count"`
	Average    float64 `json:"average"`
	Max        float64 `json:"max"`
}

// CheckboxStats tallies the exact strings "true" and "false". Anything
// else counts toward neither.
type CheckboxStats struct {
	QuestionID string `json:"questionId"`
	Title      string `json:"title"`
	True       int    `json:"true"`
	False      int    `json:"false"`
}

// RawAnswers lists every submitted value of a text or numeric question,
// in form order, without dedup.
type RawAnswers struct {
	QuestionID string             `json:"questionId"`
	Title      string             `json:"title"`
	Type       model.QuestionType `json:"type"`
	Values     []string           `json:"values"`
}

type Summary struct {
	TemplateID string          `json:"templateId"`
	FormCount  int             `json:"formCount"`
	Numeric    []NumericStats  `json:"numeric"`
	Checkbox   []CheckboxStats `json:"checkbox"`
	Raw        []RawAnswers    `json:"raw"`
}

// Aggregate builds the summary for t over forms. Questions are visited in
// template order; fixed questions are skipped.
func Aggregate(t *model.Template, forms []model.Form) *Summary {
	s := &Summary{
		TemplateID: t.ID,
		FormCount:  len(forms),
		Numeric:    []NumericStats{},
		Checkbox:   []CheckboxStats{},
		Raw:        []RawAnswers{},
	}

	for _, q := range t.Questions {
		if q.Fixed {
			continue
		}
		values := answersFor(q.ID, forms)

		switch q.Type {
		case model.QuestionPositiveInteger:
			s.Numeric = append(s.Numeric, numericStats(q, values))
			s.Raw = append(s.Raw, RawAnswers{QuestionID: q.ID, Title: q.Title, Type: q.Type, Values: values})
		case model.QuestionSingleLine, model.QuestionMultiLine:
			s.Raw = append(s.Raw, RawAnswers{QuestionID: q.ID, Title: q.Title, Type: q.Type, Values: values})
		case model.QuestionCheckbox:
			s.Checkbox = append(s.Checkbox, checkboxStats(q, values))
		}
	}
	return s
}

func answersFor(questionID string, forms []model.Form) []string {
	values := []string{}
	for i := range forms {
		if v, ok := forms[i].Answer(questionID); ok {
			values = append(values, v)
		}
	}
	return values
}

func numericStats(q model.Question, values []string) NumericStats {
	st := NumericStats{QuestionID: q.ID, Title: q.Title}
	var sum float64
	for _, v := range values {
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			continue
		}
		if st.Count == 0 || n > st.Max {
			st.Max = n
		}
		sum += n
		st.Count++
	}
	if st.Count > 0 {
		st.Average = sum / float64(st.Count)
	}
	return st
}

func checkboxStats(q model.Question, values []string) CheckboxStats {
	st := CheckboxStats{QuestionID: q.ID, Title: q.Title}
	for _, v := range values {
		switch v {
		case "true":
			st.True++
		case "false":
			st.False++
		}
	}
	return st
}
