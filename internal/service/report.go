package service

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/sakif/formbuilder/internal/access"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/report"
	"github.com/sakif/formbuilder/internal/repository"
)

// ReportService exposes aggregates and CSV exports. Both show every
// respondent's answers, so they need mutation-level access.
type ReportService struct {
	templates repository.TemplateRepository
	forms     repository.FormRepository
	logger    *slog.Logger
}

func NewReportService(templates repository.TemplateRepository, forms repository.FormRepository, logger *slog.Logger) *ReportService {
	return &ReportService{templates: templates, forms: forms, logger: logger}
}

func (s *ReportService) Aggregate(ctx context.Context, templateID string, actor *model.Actor) (*report.Summary, error) {
	t, forms, err := s.load(ctx, templateID, actor)
	if err != nil {
		return nil, err
	}
	return report.Aggregate(t, forms), nil
}

// CSVExport is a rendered export ready for download.
type CSVExport struct {
	Filename string
	Data     []byte
}

func (s *ReportService) ExportCSV(ctx context.Context, templateID string, actor *model.Actor) (*CSVExport, error) {
	t, forms, err := s.load(ctx, templateID, actor)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, t, forms); err != nil {
		return nil, storageError(s.logger, "writing CSV", err)
	}

	s.logger.Info("template exported", slog.String("templateID", t.ID), slog.Int("forms", len(forms)))
	return &CSVExport{Filename: report.Filename(t, time.Now()), Data: buf.Bytes()}, nil
}

func (s *ReportService) load(ctx context.Context, templateID string, actor *model.Actor) (*model.Template, []model.Form, error) {
	t, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, nil, storageError(s.logger, "loading template", err)
	}
	if err := access.RequireMutate(t, actor); err != nil {
		return nil, nil, err
	}
	forms, err := s.forms.ListFormsByTemplate(ctx, t.ID)
	if err != nil {
		return nil, nil, storageError(s.logger, "listing forms", err)
	}
	return t, forms, nil
}
