package export

import (
	"context"
	"fmt"
	"time"

	"gavel/api/internal/store"
)

// CaseStore defines the data access the exporter needs.
type CaseStore interface {
	GetCase(ctx context.Context, caseID string) (store.Case, error)
}

// Service renders case records to PDF.
type Service struct {
	store CaseStore
}

// NewService creates a new export service.
func NewService(store CaseStore) *Service {
	return &Service{store: store}
}

// Export generates a PDF of the full case record.
func (s *Service) Export(ctx context.Context, caseID string) (*Result, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}

	data := TemplateData{
		CaseID:      c.CaseID,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		SideA:       templateSide("Side A (Plaintiff)", c.SideA),
		SideB:       templateSide("Side B (Defendant)", c.SideB),
		GeneratedAt: time.Now(),
	}
	for _, d := range c.Decisions {
		data.Decisions = append(data.Decisions, TemplateDecision{
			Round:     d.Round,
			Verdict:   d.Verdict,
			Reasoning: d.Reasoning,
			CreatedAt: d.CreatedAt,
		})
	}

	html, err := RenderCaseHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	return exportPDF(html, c.CaseID)
}

func templateSide(label string, rec store.SideRecord) TemplateSide {
	side := TemplateSide{Label: label}
	for _, d := range rec.Documents {
		side.Documents = append(side.Documents, d.ObjectRef)
	}
	for _, a := range rec.Arguments {
		side.Arguments = append(side.Arguments, TemplateArgument{Text: a.Body, CreatedAt: a.CreatedAt})
	}
	return side
}
