package service

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/feedbacklab/survey-server/internal/model"
)

const (
	dbTimeout = 1 * time.Second

	// DefaultScaleMax bounds linear scale answers: 1..10 inclusive.
	DefaultScaleMax = 10
	// DefaultMaxTextLength bounds free-text answers, in characters.
	DefaultMaxTextLength = 5000

	// submitRetryLimit bounds how often a submission re-reads and re-merges
	// after losing the write race to a concurrent submission.
	submitRetryLimit = 3
)

// ResponseService validates inbound answers against the active survey and
// merges them into the user's stored response.
type ResponseService struct {
	surveys   SurveyStore
	responses ResponseStore
	logger    *zap.Logger
	now       func() time.Time

	scaleMax      int
	maxTextLength int
}

// NewResponseService creates a new ResponseService instance.
func NewResponseService(surveys SurveyStore, responses ResponseStore, logger *zap.Logger) *ResponseService {
	if surveys == nil || responses == nil {
		panic("storage must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	return &ResponseService{
		surveys:       surveys,
		responses:     responses,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
		scaleMax:      DefaultScaleMax,
		maxTextLength: DefaultMaxTextLength,
	}
}

// SubmitRequest carries one submission: a partial save of some answers or
// the final complete submission of the whole form.
type SubmitRequest struct {
	SurveyID     string
	UserID       string
	Answers      map[string]string
	ResponseType string
}

// Submit validates the request, merges the answers into the user's stored
// response and keeps the survey's rating group counters current.
//
// Merging is last-write-wins per question: the rating-only partial write a
// user makes the moment they pick a score is later overwritten field by
// field by the full-form submission, leaving exactly one stored response.
func (s *ResponseService) Submit(ctx context.Context, req SubmitRequest) (*model.SurveyResponse, error) {
	if !model.IsValidID(req.SurveyID) {
		return nil, fmt.Errorf("%w: malformed survey ID %q", ErrValidation, req.SurveyID)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrValidation)
	}
	if len(req.Answers) == 0 {
		return nil, fmt.Errorf("%w: submission carries no answers", ErrValidation)
	}

	responseType := req.ResponseType
	if responseType == "" {
		responseType = model.ResponseTypePartial
	}
	if responseType != model.ResponseTypePartial && responseType != model.ResponseTypeComplete {
		return nil, fmt.Errorf("%w: unknown response type %q", ErrValidation, responseType)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	survey, err := s.surveys.GetSurvey(dbCtx, req.SurveyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}

	if StatusAt(survey, s.now()) != model.SurveyStatusInProgress {
		return nil, ErrSurveyNotActive
	}

	if err := s.validateAnswers(survey, req.Answers); err != nil {
		return nil, err
	}

	// Read-merge-write under an optimistic version guard: the upsert applies
	// only while the row still carries the update_at we read, so two racing
	// submissions from the same user cannot both count themselves as the
	// first write. The loser re-reads the winning row and merges over it.
	var existing, response *model.SurveyResponse
	applied := false
	for attempt := 0; attempt < submitRetryLimit && !applied; attempt++ {
		existing, err = s.responses.GetResponse(dbCtx, req.SurveyID, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		if existing != nil && existing.ResponseType == model.ResponseTypeComplete {
			return nil, ErrResponseFrozen
		}

		merged := mergeAnswers(existing, req.Answers)

		if responseType == model.ResponseTypeComplete {
			if err := checkMandatoryAnswered(survey, merged); err != nil {
				return nil, err
			}
		}

		response = &model.SurveyResponse{
			SurveyID:     req.SurveyID,
			UserID:       req.UserID,
			Answers:      merged,
			ResponseType: responseType,
			UpdateAt:     s.now().UnixMilli(),
		}
		priorUpdateAt := int64(-1)
		if existing != nil {
			response.ID = existing.ID
			response.CreateAt = existing.CreateAt
			priorUpdateAt = existing.UpdateAt
		}
		response.SetDefaults()

		if err := response.IsValid(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}

		applied, err = s.responses.UpsertResponse(dbCtx, response, priorUpdateAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}
	if !applied {
		return nil, fmt.Errorf("%w: submission for survey %s kept losing the write race", ErrStorageFailure, req.SurveyID)
	}

	created := existing == nil
	if created {
		if err := s.responses.IncrementResponseCount(dbCtx, req.SurveyID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}

	if err := s.updateRatingGroupCounts(dbCtx, survey, existing, response); err != nil {
		return nil, err
	}

	s.logger.Info("survey response saved",
		zap.String("surveyID", req.SurveyID),
		zap.String("responseType", response.ResponseType),
		zap.Int("answerCount", len(response.Answers)),
		zap.Bool("created", created))

	return response, nil
}

// validateAnswers checks question membership and per-type value constraints.
func (s *ResponseService) validateAnswers(survey *model.Survey, answers map[string]string) error {
	questionsByID := make(map[string]model.Question, len(survey.Questions))
	for _, question := range survey.Questions {
		questionsByID[question.ID] = question
	}

	for questionID, value := range answers {
		question, ok := questionsByID[questionID]
		if !ok {
			return fmt.Errorf("%w: question %q does not belong to the survey", ErrValidation, questionID)
		}

		switch question.Type {
		case model.QuestionTypeLinearScale:
			rating, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%w: rating for question %q is not an integer", ErrValidation, questionID)
			}
			if rating < 1 || rating > s.scaleMax {
				return fmt.Errorf("%w: rating %d for question %q is outside 1-%d", ErrValidation, rating, questionID, s.scaleMax)
			}

		case model.QuestionTypeText:
			if utf8.RuneCountInString(value) > s.maxTextLength {
				return fmt.Errorf("%w: answer for question %q exceeds %d characters", ErrValidation, questionID, s.maxTextLength)
			}
		}
	}

	return nil
}

func checkMandatoryAnswered(survey *model.Survey, answers map[string]string) error {
	for _, question := range survey.Questions {
		if !question.Mandatory {
			continue
		}
		if answers[question.ID] == "" {
			return fmt.Errorf("%w: mandatory question %q is unanswered", ErrValidation, question.ID)
		}
	}
	return nil
}

func mergeAnswers(existing *model.SurveyResponse, incoming map[string]string) map[string]string {
	merged := make(map[string]string, len(incoming))
	if existing != nil {
		for questionID, value := range existing.Answers {
			merged[questionID] = value
		}
	}
	for questionID, value := range incoming {
		merged[questionID] = value
	}
	return merged
}

// updateRatingGroupCounts transfers the user's rating between the survey's
// promoter/passive/detractor counters when a re-submission moves it.
func (s *ResponseService) updateRatingGroupCounts(ctx context.Context, survey *model.Survey, oldResponse, newResponse *model.SurveyResponse) error {
	ratingQuestionID, err := survey.SystemRatingQuestionID()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	newValue, hasNew := newResponse.Answers[ratingQuestionID]
	if !hasNew {
		return nil
	}
	newRating, err := strconv.Atoi(newValue)
	if err != nil {
		return fmt.Errorf("%w: stored rating %q is not an integer", ErrValidation, newValue)
	}

	promoter, passive, detractor := RatingGroupFactors(newRating, s.scaleMax)

	if oldResponse != nil {
		if oldValue, hasOld := oldResponse.Answers[ratingQuestionID]; hasOld {
			oldRating, err := strconv.Atoi(oldValue)
			if err != nil {
				return fmt.Errorf("%w: stored rating %q is not an integer", ErrValidation, oldValue)
			}

			if RatingBucket(oldRating, s.scaleMax) == RatingBucket(newRating, s.scaleMax) {
				return nil
			}

			oldPromoter, oldPassive, oldDetractor := RatingGroupFactors(oldRating, s.scaleMax)
			promoter -= oldPromoter
			passive -= oldPassive
			detractor -= oldDetractor
		}
	}

	if err := s.responses.UpdateRatingGroupCounts(ctx, survey.ID, promoter, passive, detractor); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	return nil
}
