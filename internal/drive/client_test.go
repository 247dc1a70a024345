package drive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}), srv
}

func TestListFolderFiltersToSpreadsheets(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/files") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" {
			t.Fatalf("expected api key in query, got %q", q.Get("key"))
		}
		if !strings.Contains(q.Get("q"), "'folder-1' in parents") {
			t.Fatalf("unexpected drive query: %s", q.Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[
			{"id":"f1","name":"soal_batch_1.xlsx","mimeType":"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
			{"id":"f2","name":"Soal Sheet Asli","mimeType":"application/vnd.google-apps.spreadsheet"},
			{"id":"f3","name":"notulen.pdf","mimeType":"application/pdf"}
		]}`))
	})

	files, err := client.ListFolder(context.Background(), "folder-1")
	if err != nil {
		t.Fatalf("list folder: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected pdf to be filtered out, got %d files", len(files))
	}
	if files[0].ID != "f1" || files[1].ID != "f2" {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestListFolderRequiresConfig(t *testing.T) {
	client := NewClient(ClientConfig{})
	if _, err := client.ListFolder(context.Background(), "folder-1"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	client = NewClient(ClientConfig{APIKey: "k"})
	if _, err := client.ListFolder(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for blank folder id")
	}
}

func TestDownloadRegularFile(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/files/f1" && r.URL.Query().Get("alt") == "media":
			_, _ = w.Write([]byte("xlsx-bytes"))
		case r.URL.Path == "/files/f1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"f1","name":"soal.xlsx","mimeType":"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}`))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	data, name, err := client.Download(context.Background(), "f1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "xlsx-bytes" {
		t.Fatalf("unexpected bytes: %q", data)
	}
	if name != "soal.xlsx" {
		t.Fatalf("unexpected name: %q", name)
	}
}

func TestDownloadNativeSheetUsesExport(t *testing.T) {
	exportCalled := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/sheet-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"sheet-1","name":"Soal Asli","mimeType":"application/vnd.google-apps.spreadsheet"}`))
		case "/files/sheet-1/export":
			exportCalled = true
			if got := r.URL.Query().Get("mimeType"); got != exportMimeType {
				t.Fatalf("unexpected export mime type: %s", got)
			}
			_, _ = w.Write([]byte("exported-bytes"))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	data, _, err := client.Download(context.Background(), "sheet-1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !exportCalled {
		t.Fatalf("expected export endpoint to be used for native sheets")
	}
	if string(data) != "exported-bytes" {
		t.Fatalf("unexpected bytes: %q", data)
	}
}

func TestDownloadNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
	})

	if _, _, err := client.Download(context.Background(), "missing"); err != ErrFileNotFound {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestDownloadUpstreamError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, _, err := client.Download(context.Background(), "f1")
	if err == nil || !strings.Contains(err.Error(), "drive status 429") {
		t.Fatalf("expected status error, got %v", err)
	}
}
