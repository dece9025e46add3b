// Package api uploads annotation files to a remote annotation store.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// ErrNoURL is returned by New when the store URL is empty.
var ErrNoURL = errors.New("annotation store URL is not set")

// UploadMetadata describes an uploaded annotation file.
type UploadMetadata struct {
	Name    string
	Width   float64
	Height  float64
	Markers int
	Tag     string
}

// Client handles communication with the annotation store.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client. A non-positive timeout uses 30s.
func New(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNoURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Healthcheck checks if the store is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// fields returns the form fields sent ahead of the file part.
func (m UploadMetadata) fields(secret, filename string) [][2]string {
	name := m.Name
	if name == "" {
		name = filename
	}
	return [][2]string{
		{"secret", secret},
		{"filename", filename},
		{"name", name},
		{"width", strconv.FormatFloat(m.Width, 'f', -1, 64)},
		{"height", strconv.FormatFloat(m.Height, 'f', -1, 64)},
		{"markers", strconv.Itoa(m.Markers)},
		{"tag", m.Tag},
	}
}

// Upload sends an annotation file as a multipart form.
func (c *Client) Upload(ctx context.Context, filePath string, meta UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return c.post(ctx, "/api/v1/annotations/add", filepath.Base(filePath), file, meta)
}

// post streams the form through a pipe so the file is never held in memory.
func (c *Client) post(ctx context.Context, path, filename string, content io.Reader, meta UploadMetadata) error {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	written := make(chan error, 1)
	go func() {
		err := writeForm(form, meta.fields(c.apiKey, filename), filename, content)
		if cerr := form.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
		written <- err
	}()

	// abort unblocks the writer goroutine when the body will not be read.
	abort := func(err error) error {
		_ = pr.CloseWithError(err)
		<-written
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		return abort(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return abort(fmt.Errorf("upload request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return abort(fmt.Errorf("upload returned status %d", resp.StatusCode))
	}
	return <-written
}

func writeForm(form *multipart.Writer, fields [][2]string, filename string, content io.Reader) error {
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return nil
}
