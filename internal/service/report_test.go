package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/formbuilder/internal/apperror"
)

func TestReportAggregate(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()

	for i, age := range []string{"3", "5", "7"} {
		respondent := f.env.newActor(t, "r"+age, false)
		_, err := f.env.forms.Submit(ctx, f.tmpl.ID, respondent, f.answers("n", age, i%2 == 0))
		require.NoError(t, err)
	}

	summary, err := f.env.reports.Aggregate(ctx, f.tmpl.ID, f.creator)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.FormCount)

	require.Len(t, summary.Numeric, 1)
	assert.Equal(t, f.age.ID, summary.Numeric[0].QuestionID)
	assert.InDelta(t, 5.0, summary.Numeric[0].Average, 1e-9)
	assert.InDelta(t, 7.0, summary.Numeric[0].Max, 1e-9)

	require.Len(t, summary.Checkbox, 1)
	assert.Equal(t, 2, summary.Checkbox[0].True)
	assert.Equal(t, 1, summary.Checkbox[0].False)
}

func TestReportAccess(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	respondent := f.env.newActor(t, "resp", false)
	admin := f.env.newActor(t, "admin", true)

	_, err := f.env.reports.Aggregate(ctx, f.tmpl.ID, respondent)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = f.env.reports.ExportCSV(ctx, f.tmpl.ID, nil)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	_, err = f.env.reports.Aggregate(ctx, f.tmpl.ID, admin)
	assert.NoError(t, err)
	_, err = f.env.reports.Aggregate(ctx, "missing", admin)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestExportCSV(t *testing.T) {
	f := newSurveyFixture(t)
	ctx := context.Background()
	respondent := f.env.newActor(t, "resp", false)

	_, err := f.env.forms.Submit(ctx, f.tmpl.ID, respondent, f.answers("Ann", "4", true))
	require.NoError(t, err)

	export, err := f.env.reports.ExportCSV(ctx, f.tmpl.ID, f.creator)
	require.NoError(t, err)
	assert.Equal(t, "template-"+f.tmpl.ID+"-"+time.Now().UTC().Format("20060102")+".csv", export.Filename)

	lines := strings.Split(strings.TrimSuffix(string(export.Data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `"Form ID","Submitted By","Submitted At"`), lines[0])
	assert.Contains(t, lines[1], `"resp"`)
	assert.Contains(t, lines[1], `"Ann","4","true"`)
}
