package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/chasmos/internal/model"
)

// RESTBackend talks to the HTTP API with the gate's bearer token.
type RESTBackend struct {
	baseURL string
	gate    *AuthGate
	client  *http.Client
}

func NewRESTBackend(baseURL string, gate *AuthGate) *RESTBackend {
	return &RESTBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		gate:    gate,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *RESTBackend) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := b.gate.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return b.client.Do(req)
}

func (b *RESTBackend) SendMessage(ctx context.Context, m *model.Message) error {
	payload := map[string]any{
		"kind":    m.Kind,
		"content": m.Content,
	}
	if m.Attachment != nil {
		payload["file_url"] = m.Attachment.URL
		payload["file_name"] = m.Attachment.FileName
		payload["file_size"] = m.Attachment.FileSize
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("restBackend.SendMessage: %w", err)
	}
	resp, err := b.do(ctx, http.MethodPost, "/api/conversations/"+m.ConversationID+"/messages", bytes.NewReader(raw), "application/json")
	if err != nil {
		return fmt.Errorf("restBackend.SendMessage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("restBackend.SendMessage: status %d", resp.StatusCode)
	}
	return nil
}

func (b *RESTBackend) UploadDocument(ctx context.Context, fileName string, r io.Reader) (*model.Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("restBackend.UploadDocument: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("restBackend.UploadDocument: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("restBackend.UploadDocument: %w", err)
	}

	resp, err := b.do(ctx, http.MethodPost, "/api/files/documents", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, fmt.Errorf("restBackend.UploadDocument: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Success     bool   `json:"success"`
		Error       string `json:"error"`
		URL         string `json:"url"`
		FileName    string `json:"file_name"`
		FileSize    int64  `json:"file_size"`
		ContentType string `json:"content_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("restBackend.UploadDocument: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("restBackend.UploadDocument: %s", out.Error)
	}
	return &model.Attachment{
		URL:      out.URL,
		FileName: out.FileName,
		FileSize: out.FileSize,
		MimeType: out.ContentType,
	}, nil
}

func (b *RESTBackend) MarkRead(ctx context.Context, conversationID string) error {
	resp, err := b.do(ctx, http.MethodPost, "/api/conversations/"+conversationID+"/read", nil, "")
	if err != nil {
		return fmt.Errorf("restBackend.MarkRead: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("restBackend.MarkRead: status %d", resp.StatusCode)
	}
	return nil
}
