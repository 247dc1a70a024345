package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"traindesk/internal/app/apiresp"
	"traindesk/internal/auth"

	"github.com/go-chi/chi/v5"
)

const maxImportUploadBytes = 10 << 20

type quizService interface {
	PreviewImport(ctx context.Context, r io.Reader) (*ImportPreview, error)
	ImportFromDrive(ctx context.Context, fileID string) (*ImportPreview, string, error)
	CreateQuizFromImport(ctx context.Context, in ImportCommitInput) (*Quiz, error)
	ListQuizzes(ctx context.Context, includeInactive bool) ([]Quiz, error)
	GetQuiz(ctx context.Context, quizID int64) (*QuizDetail, error)
	DeleteQuiz(ctx context.Context, quizID int64) error
}

type activityRecorder interface {
	Record(ctx context.Context, actorID int64, action, entity string, entityID int64, detail string) error
}

type Handler struct {
	svc      quizService
	activity activityRecorder
}

func NewHandler(svc quizService, activity activityRecorder) *Handler {
	return &Handler{svc: svc, activity: activity}
}

type importDriveRequest struct {
	FileID string `json:"file_id"`
}

type importCommitRequest struct {
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	QuizType         string      `json:"quiz_type"`
	ModuleID         *int64      `json:"module_id"`
	PassingScore     int         `json:"passing_score"`
	TimeLimitMinutes *int        `json:"time_limit_minutes"`
	SourceFileID     string      `json:"source_file_id"`
	SourceFileName   string      `json:"source_file_name"`
	Questions        []Candidate `json:"questions"`
}

type importPreviewResponse struct {
	Preview        *ImportPreview `json:"preview"`
	SourceFileName string         `json:"source_file_name,omitempty"`
	SourceFileID   string         `json:"source_file_id,omitempty"`
}

// ImportPreview accepts a multipart spreadsheet upload and returns the
// parsed candidates with parse errors and the validation report. Nothing
// is persisted; the operator reviews and may edit before committing.
func (h *Handler) ImportPreview(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportUploadBytes); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	preview, err := h.svc.PreviewImport(r.Context(), file)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	apiresp.WriteOK(w, r, http.StatusOK, importPreviewResponse{
		Preview:        preview,
		SourceFileName: header.Filename,
	})
}

func (h *Handler) ImportFromDrive(w http.ResponseWriter, r *http.Request) {
	var req importDriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	preview, name, err := h.svc.ImportFromDrive(r.Context(), req.FileID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusBadGateway, err.Error())
		}
		return
	}

	apiresp.WriteOK(w, r, http.StatusOK, importPreviewResponse{
		Preview:        preview,
		SourceFileName: name,
		SourceFileID:   strings.TrimSpace(req.FileID),
	})
}

func (h *Handler) CommitImport(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req importCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.svc.CreateQuizFromImport(r.Context(), ImportCommitInput{
		Title:            req.Title,
		Description:      req.Description,
		QuizType:         req.QuizType,
		ModuleID:         req.ModuleID,
		PassingScore:     req.PassingScore,
		TimeLimitMinutes: req.TimeLimitMinutes,
		SourceFileID:     req.SourceFileID,
		SourceFileName:   req.SourceFileName,
		Candidates:       req.Questions,
		CreatedBy:        user.ID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidationFailed):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrModuleNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.record(r.Context(), user.ID, "quiz.import", item.ID,
		fmt.Sprintf("imported %d questions", item.TotalQuestions))
	apiresp.WriteOK(w, r, http.StatusCreated, item)
}

// DownloadTemplate serves the generated import template as a file download.
func (h *Handler) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := BuildTemplate()
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "cannot build template")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+TemplateFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "1"

	items, err := h.svc.ListQuizzes(r.Context(), includeInactive)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || quizID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz id")
		return
	}

	item, err := h.svc.GetQuiz(r.Context(), quizID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrQuizNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, item)
}

func (h *Handler) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	quizID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || quizID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz id")
		return
	}

	if err := h.svc.DeleteQuiz(r.Context(), quizID); err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrQuizNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.record(r.Context(), user.ID, "quiz.delete", quizID, "")
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) record(ctx context.Context, actorID int64, action string, entityID int64, detail string) {
	if h.activity == nil {
		return
	}
	_ = h.activity.Record(ctx, actorID, action, "quiz", entityID, detail)
}
