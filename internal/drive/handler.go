package drive

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"traindesk/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type driveClient interface {
	ListFolder(ctx context.Context, folderID string) ([]File, error)
	Download(ctx context.Context, fileID string) ([]byte, string, error)
}

type Handler struct {
	client          driveClient
	defaultFolderID string
}

func NewHandler(client *Client, defaultFolderID string) *Handler {
	return &Handler{client: client, defaultFolderID: defaultFolderID}
}

// ListFiles lists spreadsheet files in a Drive folder. Without an explicit
// folder_id query param the configured import folder is used.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	folderID := r.URL.Query().Get("folder_id")
	if folderID == "" {
		folderID = h.defaultFolderID
	}
	if folderID == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "folder_id is required")
		return
	}

	files, err := h.client.ListFolder(r.Context(), folderID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotConfigured):
			apiresp.WriteError(w, r, http.StatusServiceUnavailable, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusBadGateway, err.Error())
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, files)
}

// DownloadFile proxies the raw file bytes so the dashboard never needs the
// API key.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")
	if fileID == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "file id is required")
		return
	}

	data, name, err := h.client.Download(r.Context(), fileID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotConfigured):
			apiresp.WriteError(w, r, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, ErrFileNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusBadGateway, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
