package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/feedbacklab/survey-server/internal/model"
)

const reportPageSize = 500

// ReportFileName resolves the download filename for a survey report,
// falling back to a generated default when no metadata supplies one.
func ReportFileName(surveyID, supplied string) string {
	if supplied != "" {
		return supplied
	}
	return fmt.Sprintf("survey_report_%s.csv", surveyID)
}

// WriteReportCSV streams every response of a survey as CSV: a header row of
// question texts, then one row per respondent. Responses are read in pages
// so large surveys never load fully into memory.
func (s *SurveyService) WriteReportCSV(ctx context.Context, surveyID string, w io.Writer) error {
	if !model.IsValidID(surveyID) {
		return fmt.Errorf("%w: malformed survey ID %q", ErrValidation, surveyID)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	survey, err := s.surveys.GetSurvey(dbCtx, surveyID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if survey == nil {
		return ErrSurveyNotFound
	}

	csvWriter := csv.NewWriter(w)

	header := []string{"User ID", "Submitted At"}
	for _, question := range survey.Questions {
		header = append(header, question.Text)
	}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("report: failed to write header row: %w", err)
	}

	lastResponseID := ""
	rowCount := 0
	for {
		page, err := s.responses.GetResponsesPage(dbCtx, surveyID, lastResponseID, reportPageSize)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		if len(page) == 0 {
			break
		}

		for _, response := range page {
			if err := csvWriter.Write(response.ToReportRow(survey.Questions)); err != nil {
				return fmt.Errorf("report: failed to write response row: %w", err)
			}
			rowCount++
		}

		lastResponseID = page[len(page)-1].ID
		if len(page) < reportPageSize {
			break
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("report: csv writer failed on flush: %w", err)
	}

	s.logger.Info("survey report generated",
		zap.String("surveyID", surveyID),
		zap.Int("rows", rowCount))

	return nil
}
