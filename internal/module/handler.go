package module

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"traindesk/internal/app/apiresp"
	"traindesk/internal/auth"

	"github.com/go-chi/chi/v5"
)

type activityRecorder interface {
	Record(ctx context.Context, actorID int64, action, entity string, entityID int64, detail string) error
}

type Handler struct {
	svc      *Service
	activity activityRecorder
}

type moduleRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	ModuleType      string `json:"module_type"`
	ContentURL      string `json:"content_url"`
	DriveFileID     string `json:"drive_file_id"`
	DurationMinutes *int   `json:"duration_minutes"`
}

func NewHandler(svc *Service, activity activityRecorder) *Handler {
	return &Handler{svc: svc, activity: activity}
}

func (h *Handler) CreateModule(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req moduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.svc.CreateModule(r.Context(), CreateModuleInput{
		Title:           req.Title,
		Description:     req.Description,
		ModuleType:      req.ModuleType,
		ContentURL:      req.ContentURL,
		DriveFileID:     req.DriveFileID,
		DurationMinutes: req.DurationMinutes,
		CreatedBy:       user.ID,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	h.record(r.Context(), user.ID, "module.create", item.ID, item.Title)
	apiresp.WriteOK(w, r, http.StatusCreated, item)
}

func (h *Handler) UpdateModule(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	moduleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || moduleID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid module id")
		return
	}

	var req moduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.svc.UpdateModule(r.Context(), moduleID, UpdateModuleInput{
		Title:           req.Title,
		Description:     req.Description,
		ModuleType:      req.ModuleType,
		ContentURL:      req.ContentURL,
		DriveFileID:     req.DriveFileID,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrModuleNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.record(r.Context(), user.ID, "module.update", item.ID, item.Title)
	apiresp.WriteOK(w, r, http.StatusOK, item)
}

func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.ListModules(r.Context(), q.Get("module_type"), q.Get("include_inactive") == "1")
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	moduleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || moduleID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid module id")
		return
	}

	item, err := h.svc.GetModule(r.Context(), moduleID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrModuleNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, item)
}

func (h *Handler) DeleteModule(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	moduleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || moduleID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid module id")
		return
	}

	if err := h.svc.DeleteModule(r.Context(), moduleID); err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrModuleNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.record(r.Context(), user.ID, "module.delete", moduleID, "")
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) record(ctx context.Context, actorID int64, action string, entityID int64, detail string) {
	if h.activity == nil {
		return
	}
	_ = h.activity.Record(ctx, actorID, action, "module", entityID, detail)
}
