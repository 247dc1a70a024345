package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://www.googleapis.com/drive/v3"

	// Native Google Sheets cannot be fetched with alt=media; they must be
	// exported to xlsx first.
	sheetMimeType  = "application/vnd.google-apps.spreadsheet"
	exportMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxDownloadBytes = 32 << 20
)

var (
	ErrNotConfigured = errors.New("drive api key is not configured")
	ErrFileNotFound  = errors.New("drive file not found")
)

type ClientConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to the Drive v3 REST API with an API key. Only read
// operations are used: listing a shared folder and fetching file bytes.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         string `json:"size,omitempty"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
}

func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		client:  client,
	}
}

type listResponse struct {
	Files []File `json:"files"`
}

// ListFolder returns the spreadsheet-like files in a shared Drive folder,
// newest first.
func (c *Client) ListFolder(ctx context.Context, folderID string) ([]File, error) {
	folderID = strings.TrimSpace(folderID)
	if folderID == "" {
		return nil, fmt.Errorf("folder_id is required")
	}
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", folderID))
	q.Set("orderBy", "modifiedTime desc")
	q.Set("fields", "files(id,name,mimeType,size,modifiedTime)")
	q.Set("key", c.apiKey)

	raw, err := c.get(ctx, c.baseURL+"/files?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var out listResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}

	files := make([]File, 0, len(out.Files))
	for _, f := range out.Files {
		if isSpreadsheet(f.MimeType, f.Name) {
			files = append(files, f)
		}
	}
	return files, nil
}

// Download fetches the raw xlsx bytes of a Drive file plus its name.
// Native Google Sheets are exported, everything else is fetched directly.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, "", fmt.Errorf("file_id is required")
	}
	if c.apiKey == "" {
		return nil, "", ErrNotConfigured
	}

	meta, err := c.metadata(ctx, fileID)
	if err != nil {
		return nil, "", err
	}

	fileURL := c.baseURL + "/files/" + url.PathEscape(fileID)
	if meta.MimeType == sheetMimeType {
		fileURL += "/export?mimeType=" + url.QueryEscape(exportMimeType) + "&key=" + url.QueryEscape(c.apiKey)
	} else {
		fileURL += "?alt=media&key=" + url.QueryEscape(c.apiKey)
	}

	data, err := c.get(ctx, fileURL)
	if err != nil {
		return nil, "", err
	}
	return data, meta.Name, nil
}

func (c *Client) metadata(ctx context.Context, fileID string) (*File, error) {
	q := url.Values{}
	q.Set("fields", "id,name,mimeType")
	q.Set("key", c.apiKey)

	raw, err := c.get(ctx, c.baseURL+"/files/"+url.PathEscape(fileID)+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var out File
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode file metadata: %w", err)
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read drive response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrFileNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("drive status %d", resp.StatusCode)
	}
	return body, nil
}

func isSpreadsheet(mimeType, name string) bool {
	if mimeType == sheetMimeType || mimeType == exportMimeType {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), ".xlsx")
}
