package httpapi_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feedbacklab/survey-server/internal/httpapi"
	"github.com/feedbacklab/survey-server/internal/httpapi/mocks"
	"github.com/feedbacklab/survey-server/internal/model"
	"github.com/feedbacklab/survey-server/internal/service"
)

type handlerFixture struct {
	surveys   *mocks.MockSurveyService
	responses *mocks.MockResponseService
	cache     *mocks.MockCacher
	server    *httptest.Server
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		surveys:   &mocks.MockSurveyService{},
		responses: &mocks.MockResponseService{},
		cache:     &mocks.MockCacher{},
	}

	handlers := httpapi.NewHandlers(f.surveys, f.responses, f.cache, zap.NewNop())
	f.server = httptest.NewServer(handlers.Router())
	t.Cleanup(f.server.Close)

	return f
}

func (f *handlerFixture) do(t *testing.T, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func userHeaders() map[string]string {
	return map[string]string{"X-User-ID": "user-1"}
}

func adminHeaders() map[string]string {
	return map[string]string{"X-User-ID": "admin-1", "X-User-Role": "system_admin"}
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSubmitResponse(t *testing.T) {
	surveyID := model.NewID()

	t.Run("saves a submission", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.responses.SubmitFunc = func(ctx context.Context, req service.SubmitRequest) (*model.SurveyResponse, error) {
			assert.Equal(t, surveyID, req.SurveyID)
			assert.Equal(t, "user-1", req.UserID)
			assert.Equal(t, map[string]string{"q1": "9"}, req.Answers)
			assert.Equal(t, model.ResponseTypePartial, req.ResponseType)

			response := &model.SurveyResponse{SurveyID: req.SurveyID, UserID: req.UserID, Answers: req.Answers, ResponseType: req.ResponseType}
			response.SetDefaults()
			return response, nil
		}

		deleted := int32(0)
		f.cache.DelFunc = func(ctx context.Context, keys ...string) error {
			atomic.AddInt32(&deleted, 1)
			return nil
		}

		resp := f.do(t, http.MethodPost, "/api/v1/surveys/"+surveyID+"/responses",
			`{"answers":{"q1":"9"},"response_type":"partial"}`, userHeaders())

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody[model.SurveyResponse](t, resp)
		assert.Equal(t, surveyID, body.SurveyID)
		assert.EqualValues(t, 1, atomic.LoadInt32(&deleted), "a write invalidates the stat cache")
	})

	t.Run("requires the user identity header", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp := f.do(t, http.MethodPost, "/api/v1/surveys/"+surveyID+"/responses",
			`{"answers":{"q1":"9"}}`, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp := f.do(t, http.MethodPost, "/api/v1/surveys/"+surveyID+"/responses",
			`{"answers":`, userHeaders())
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("maps service errors to statuses", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
		}{
			{name: "validation", err: service.ErrValidation, wantStatus: http.StatusBadRequest},
			{name: "not found", err: service.ErrSurveyNotFound, wantStatus: http.StatusNotFound},
			{name: "not active", err: service.ErrSurveyNotActive, wantStatus: http.StatusConflict},
			{name: "frozen", err: service.ErrResponseFrozen, wantStatus: http.StatusConflict},
			{name: "storage", err: service.ErrStorageFailure, wantStatus: http.StatusInternalServerError},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newHandlerFixture(t)
				f.responses.SubmitFunc = func(ctx context.Context, req service.SubmitRequest) (*model.SurveyResponse, error) {
					return nil, tt.err
				}

				resp := f.do(t, http.MethodPost, "/api/v1/surveys/"+surveyID+"/responses",
					`{"answers":{"q1":"9"}}`, userHeaders())
				assert.Equal(t, tt.wantStatus, resp.StatusCode)
			})
		}
	})
}

func TestGetActiveSurvey(t *testing.T) {
	t.Run("returns the running survey", func(t *testing.T) {
		f := newHandlerFixture(t)
		running := &model.Survey{ID: model.NewID(), Status: model.SurveyStatusInProgress}
		f.surveys.ActiveSurveyFunc = func(ctx context.Context) (*model.Survey, error) {
			return running, nil
		}

		resp := f.do(t, http.MethodGet, "/api/v1/surveys/active", "", userHeaders())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[model.Survey](t, resp)
		assert.Equal(t, running.ID, body.ID)
	})

	t.Run("404 when none is running", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.surveys.ActiveSurveyFunc = func(ctx context.Context) (*model.Survey, error) {
			return nil, nil
		}

		resp := f.do(t, http.MethodGet, "/api/v1/surveys/active", "", userHeaders())
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestEndSurvey(t *testing.T) {
	surveyID := model.NewID()

	t.Run("admin ends a survey", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.surveys.EndFunc = func(ctx context.Context, id string) (string, error) {
			assert.Equal(t, surveyID, id)
			return model.SurveyStatusEnded, nil
		}

		resp := f.do(t, http.MethodPost, "/api/v1/surveys/"+surveyID+"/end", "", adminHeaders())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[map[string]string](t, resp)
		assert.Equal(t, model.SurveyStatusEnded, body["status"])
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp := f.do(t, http.MethodPost, "/api/v1/surveys/"+surveyID+"/end", "", userHeaders())
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestRecordReceipt(t *testing.T) {
	f := newHandlerFixture(t)
	surveyID := model.NewID()

	var recorded string
	f.surveys.RecordReceiptFunc = func(ctx context.Context, id string) error {
		recorded = id
		return nil
	}

	resp := f.do(t, http.MethodPost, "/api/v1/surveys/"+surveyID+"/receipts", "", userHeaders())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, surveyID, recorded)
}

func TestListSurveyStats(t *testing.T) {
	stats := []*model.SurveyStat{
		{Survey: model.Survey{ID: model.NewID()}, ResponseCount: 5, PromoterCount: 3, DetractorCount: 1},
	}

	t.Run("cache miss falls through to the service", func(t *testing.T) {
		f := newHandlerFixture(t)
		calls := int32(0)
		f.surveys.StatListFunc = func(ctx context.Context) ([]*model.SurveyStat, error) {
			atomic.AddInt32(&calls, 1)
			return stats, nil
		}

		resp := f.do(t, http.MethodGet, "/api/v1/survey_stats", "", adminHeaders())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[[]*model.SurveyStat](t, resp)
		require.Len(t, body, 1)
		assert.Equal(t, stats[0].ID, body[0].ID)
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})

	t.Run("cache hit skips the service", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.cache.GetFunc = func(ctx context.Context, key string, dest any) error {
			*(dest.(*[]*model.SurveyStat)) = stats
			return nil
		}
		serviceCalls := int32(0)
		f.surveys.StatListFunc = func(ctx context.Context) ([]*model.SurveyStat, error) {
			atomic.AddInt32(&serviceCalls, 1)
			return nil, nil
		}

		resp := f.do(t, http.MethodGet, "/api/v1/survey_stats", "", adminHeaders())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[[]*model.SurveyStat](t, resp)
		require.Len(t, body, 1)
		assert.EqualValues(t, 0, atomic.LoadInt32(&serviceCalls), "the service must not be hit on a cache hit")
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp := f.do(t, http.MethodGet, "/api/v1/survey_stats", "", userHeaders())
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestDownloadReport(t *testing.T) {
	surveyID := model.NewID()

	f := newHandlerFixture(t)
	f.surveys.WriteReportCSVFunc = func(ctx context.Context, id string, w io.Writer) error {
		writer := csv.NewWriter(w)
		_ = writer.Write([]string{"User ID", "Submitted At", "Rating"})
		_ = writer.Write([]string{"user-1", "2024-06-20T09:30:00Z", "9"})
		writer.Flush()
		return writer.Error()
	}

	resp := f.do(t, http.MethodGet, "/api/v1/surveys/"+surveyID+"/report", "", adminHeaders())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "survey_report_"+surveyID+".csv")

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDownloadReport_CustomFileName(t *testing.T) {
	surveyID := model.NewID()

	f := newHandlerFixture(t)
	f.surveys.WriteReportCSVFunc = func(ctx context.Context, id string, w io.Writer) error {
		return nil
	}

	resp := f.do(t, http.MethodGet, "/api/v1/surveys/"+surveyID+"/report?file_name=q3.csv", "", adminHeaders())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "q3.csv")
}

func TestDownloadReport_ErrorBeforeFirstRow(t *testing.T) {
	surveyID := model.NewID()

	// nothing has been streamed yet, so the failure still becomes a proper
	// error response rather than a truncated CSV
	f := newHandlerFixture(t)
	f.surveys.WriteReportCSVFunc = func(ctx context.Context, id string, w io.Writer) error {
		return service.ErrSurveyNotFound
	}

	resp := f.do(t, http.MethodGet, "/api/v1/surveys/"+surveyID+"/report", "", adminHeaders())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Empty(t, resp.Header.Get("Content-Disposition"))
}

func TestDownloadReport_StreamsWithoutBuffering(t *testing.T) {
	surveyID := model.NewID()

	// a failure after the first page cannot be turned back into an error
	// status; the handler must keep the streamed prefix and stop
	f := newHandlerFixture(t)
	f.surveys.WriteReportCSVFunc = func(ctx context.Context, id string, w io.Writer) error {
		if _, err := io.WriteString(w, "User ID,Rating\nuser-1,9\n"); err != nil {
			return err
		}
		return errors.New("storage gave out mid-export")
	}

	resp := f.do(t, http.MethodGet, "/api/v1/surveys/"+surveyID+"/report", "", adminHeaders())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "User ID,Rating\nuser-1,9\n", string(body))
}

func TestSettingsEndpoints(t *testing.T) {
	t.Run("get returns the stored settings", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.surveys.SettingsFunc = func(ctx context.Context) (*model.Settings, error) {
			return &model.Settings{EnableSurvey: true, SurveyExpiry: model.SurveyExpiry{Days: 14}}, nil
		}

		resp := f.do(t, http.MethodGet, "/api/v1/settings", "", adminHeaders())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[model.Settings](t, resp)
		assert.True(t, body.EnableSurvey)
		assert.Equal(t, 14, body.SurveyExpiry.Days)
	})

	t.Run("put forwards the edited sub-settings", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.surveys.UpdateSettingsFunc = func(ctx context.Context, update service.SettingsUpdate) (*model.Settings, map[string]string, error) {
			require.NotNil(t, update.EnableSurvey)
			assert.True(t, *update.EnableSurvey)
			assert.Nil(t, update.SurveyExpiry, "untouched sub-settings stay nil")

			return &model.Settings{EnableSurvey: true}, map[string]string{"TeamFilter": "unknown team filter type"}, nil
		}

		resp := f.do(t, http.MethodPut, "/api/v1/settings",
			`{"enable_survey":true,"team_filter":{"filterType":"bogus"}}`, adminHeaders())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[struct {
			Settings    *model.Settings   `json:"settings"`
			FieldErrors map[string]string `json:"field_errors"`
		}](t, resp)
		assert.True(t, body.Settings.EnableSurvey)
		assert.Contains(t, body.FieldErrors, "TeamFilter")
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp := f.do(t, http.MethodGet, "/api/v1/settings", "", userHeaders())
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = f.do(t, http.MethodPut, "/api/v1/settings", `{}`, userHeaders())
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestErrorPayloadShape(t *testing.T) {
	f := newHandlerFixture(t)
	f.surveys.EndFunc = func(ctx context.Context, id string) (string, error) {
		return "", errors.New("unexpected")
	}

	resp := f.do(t, http.MethodPost, "/api/v1/surveys/"+model.NewID()+"/end", "", adminHeaders())
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.NotEmpty(t, body["error"])
	assert.NotContains(t, body["error"], "unexpected", "internal details never leak to clients")
}
