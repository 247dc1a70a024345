package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"traindesk/internal/auth"

	"github.com/go-chi/chi/v5"
)

type mockQuizService struct {
	previewImportFn        func(ctx context.Context, r io.Reader) (*ImportPreview, error)
	importFromDriveFn      func(ctx context.Context, fileID string) (*ImportPreview, string, error)
	createQuizFromImportFn func(ctx context.Context, in ImportCommitInput) (*Quiz, error)
	listQuizzesFn          func(ctx context.Context, includeInactive bool) ([]Quiz, error)
	getQuizFn              func(ctx context.Context, quizID int64) (*QuizDetail, error)
	deleteQuizFn           func(ctx context.Context, quizID int64) error
}

func (m *mockQuizService) PreviewImport(ctx context.Context, r io.Reader) (*ImportPreview, error) {
	if m.previewImportFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.previewImportFn(ctx, r)
}

func (m *mockQuizService) ImportFromDrive(ctx context.Context, fileID string) (*ImportPreview, string, error) {
	if m.importFromDriveFn == nil {
		return nil, "", errors.New("not implemented")
	}
	return m.importFromDriveFn(ctx, fileID)
}

func (m *mockQuizService) CreateQuizFromImport(ctx context.Context, in ImportCommitInput) (*Quiz, error) {
	if m.createQuizFromImportFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createQuizFromImportFn(ctx, in)
}

func (m *mockQuizService) ListQuizzes(ctx context.Context, includeInactive bool) ([]Quiz, error) {
	if m.listQuizzesFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listQuizzesFn(ctx, includeInactive)
}

func (m *mockQuizService) GetQuiz(ctx context.Context, quizID int64) (*QuizDetail, error) {
	if m.getQuizFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getQuizFn(ctx, quizID)
}

func (m *mockQuizService) DeleteQuiz(ctx context.Context, quizID int64) error {
	if m.deleteQuizFn == nil {
		return errors.New("not implemented")
	}
	return m.deleteQuizFn(ctx, quizID)
}

type recordedActivity struct {
	actorID  int64
	action   string
	entity   string
	entityID int64
	detail   string
}

type mockActivityRecorder struct {
	entries []recordedActivity
}

func (m *mockActivityRecorder) Record(ctx context.Context, actorID int64, action, entity string, entityID int64, detail string) error {
	m.entries = append(m.entries, recordedActivity{actorID, action, entity, entityID, detail})
	return nil
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestImportPreviewReturnsCandidatesAndFilename(t *testing.T) {
	h := NewHandler(&mockQuizService{
		previewImportFn: func(ctx context.Context, r io.Reader) (*ImportPreview, error) {
			if _, err := io.ReadAll(r); err != nil {
				t.Fatalf("read upload: %v", err)
			}
			return &ImportPreview{
				Candidates:  []Candidate{mcCandidate(2)},
				ParseErrors: []string{},
				Report:      Validate([]Candidate{mcCandidate(2)}),
			}, nil
		},
	}, nil)

	body, contentType := multipartUpload(t, "file", "soal.xlsx", []byte("fake-xlsx-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/import/preview", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.ImportPreview(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := decodeBody(t, w)["data"].(map[string]interface{})
	if data["source_file_name"] != "soal.xlsx" {
		t.Fatalf("expected uploaded filename in response, got %v", data["source_file_name"])
	}
}

func TestImportPreviewRequiresFileField(t *testing.T) {
	h := NewHandler(&mockQuizService{}, nil)

	body, contentType := multipartUpload(t, "attachment", "soal.xlsx", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/import/preview", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.ImportPreview(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestImportPreviewUnparseableFile(t *testing.T) {
	h := NewHandler(&mockQuizService{
		previewImportFn: func(ctx context.Context, r io.Reader) (*ImportPreview, error) {
			return nil, errors.New("open excel: zip: not a valid zip file")
		},
	}, nil)

	body, contentType := multipartUpload(t, "file", "soal.xlsx", []byte("not-an-xlsx"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/import/preview", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.ImportPreview(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestImportFromDriveBadInput(t *testing.T) {
	h := NewHandler(&mockQuizService{
		importFromDriveFn: func(ctx context.Context, fileID string) (*ImportPreview, string, error) {
			return nil, "", ErrInvalidInput
		},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/import/drive",
		strings.NewReader(`{"file_id":""}`))
	w := httptest.NewRecorder()

	h.ImportFromDrive(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestImportFromDriveUpstreamFailure(t *testing.T) {
	h := NewHandler(&mockQuizService{
		importFromDriveFn: func(ctx context.Context, fileID string) (*ImportPreview, string, error) {
			return nil, "", errors.New("download drive file: status 500")
		},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/import/drive",
		strings.NewReader(`{"file_id":"abc123"}`))
	w := httptest.NewRecorder()

	h.ImportFromDrive(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestCommitImportRequiresSession(t *testing.T) {
	h := NewHandler(&mockQuizService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/import",
		strings.NewReader(`{"title":"Quiz K3"}`))
	w := httptest.NewRecorder()

	h.CommitImport(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCommitImportUsesSessionUserAndRecordsActivity(t *testing.T) {
	var gotInput ImportCommitInput
	activity := &mockActivityRecorder{}
	h := NewHandler(&mockQuizService{
		createQuizFromImportFn: func(ctx context.Context, in ImportCommitInput) (*Quiz, error) {
			gotInput = in
			return &Quiz{ID: 42, Title: in.Title, TotalQuestions: len(in.Candidates)}, nil
		},
	}, activity)

	payload := `{
		"title": "Quiz Keselamatan Kerja",
		"quiz_type": "quiz",
		"questions": [
			{"source_row": 2, "question_text": "Pertanyaan pertama", "question_type": "multiple_choice",
			 "options": {"A": "satu", "B": "dua"}, "correct_answer": "A", "points": 10}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/import", strings.NewReader(payload))
	req = req.WithContext(auth.ContextWithUser(req.Context(), &auth.User{ID: 7, Role: "admin"}))
	w := httptest.NewRecorder()

	h.CommitImport(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if gotInput.CreatedBy != 7 {
		t.Fatalf("expected created_by forced to session user 7, got %d", gotInput.CreatedBy)
	}
	if len(gotInput.Candidates) != 1 {
		t.Fatalf("expected 1 candidate passed through, got %d", len(gotInput.Candidates))
	}
	if len(activity.entries) != 1 {
		t.Fatalf("expected one activity entry, got %d", len(activity.entries))
	}
	entry := activity.entries[0]
	if entry.action != "quiz.import" || entry.entity != "quiz" || entry.entityID != 42 || entry.actorID != 7 {
		t.Fatalf("unexpected activity entry: %+v", entry)
	}
}

func TestCommitImportErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "invalid input", err: ErrInvalidInput, wantCode: http.StatusBadRequest},
		{name: "validation failed", err: ErrValidationFailed, wantCode: http.StatusBadRequest},
		{name: "module missing", err: ErrModuleNotFound, wantCode: http.StatusNotFound},
		{name: "internal", err: errors.New("boom"), wantCode: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			activity := &mockActivityRecorder{}
			h := NewHandler(&mockQuizService{
				createQuizFromImportFn: func(ctx context.Context, in ImportCommitInput) (*Quiz, error) {
					return nil, tc.err
				},
			}, activity)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes/import",
				strings.NewReader(`{"title":"x","quiz_type":"quiz","questions":[]}`))
			req = req.WithContext(auth.ContextWithUser(req.Context(), &auth.User{ID: 7, Role: "admin"}))
			w := httptest.NewRecorder()

			h.CommitImport(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, w.Code)
			}
			if len(activity.entries) != 0 {
				t.Fatalf("failed commit must not record activity, got %+v", activity.entries)
			}
		})
	}
}

func TestDownloadTemplateHeaders(t *testing.T) {
	h := NewHandler(&mockQuizService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/template", nil)
	w := httptest.NewRecorder()

	h.DownloadTemplate(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type: %s", got)
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, TemplateFilename) {
		t.Fatalf("expected filename %q in content disposition, got %s", TemplateFilename, got)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("expected non-empty template body")
	}
}

func TestListQuizzesIncludeInactiveFlag(t *testing.T) {
	var gotIncludeInactive bool
	h := NewHandler(&mockQuizService{
		listQuizzesFn: func(ctx context.Context, includeInactive bool) ([]Quiz, error) {
			gotIncludeInactive = includeInactive
			return []Quiz{}, nil
		},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes?include_inactive=1", nil)
	w := httptest.NewRecorder()

	h.ListQuizzes(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !gotIncludeInactive {
		t.Fatalf("expected include_inactive to be passed through")
	}
}

func TestGetQuizErrors(t *testing.T) {
	h := NewHandler(&mockQuizService{
		getQuizFn: func(ctx context.Context, quizID int64) (*QuizDetail, error) {
			return nil, ErrQuizNotFound
		},
	}, nil)

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/abc", nil)
		req = withChiParam(req, "id", "abc")
		w := httptest.NewRecorder()
		h.GetQuiz(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/99", nil)
		req = withChiParam(req, "id", "99")
		w := httptest.NewRecorder()
		h.GetQuiz(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

func TestDeleteQuizRecordsActivity(t *testing.T) {
	activity := &mockActivityRecorder{}
	h := NewHandler(&mockQuizService{
		deleteQuizFn: func(ctx context.Context, quizID int64) error {
			if quizID != 5 {
				t.Fatalf("unexpected quiz id: %d", quizID)
			}
			return nil
		},
	}, activity)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/quizzes/5", nil)
	req = withChiParam(req, "id", "5")
	req = req.WithContext(auth.ContextWithUser(req.Context(), &auth.User{ID: 3, Role: "admin"}))
	w := httptest.NewRecorder()

	h.DeleteQuiz(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(activity.entries) != 1 || activity.entries[0].action != "quiz.delete" {
		t.Fatalf("expected quiz.delete activity, got %+v", activity.entries)
	}
}
