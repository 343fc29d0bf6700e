package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rma-advocacia/client-portal/internal/models"
)

// AccessCodeHeader carries the client's access code
const AccessCodeHeader = "X-Access-Code"

// Client is a Go SDK for the client-portal engagement API
type Client struct {
	baseURL    string
	accessCode string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new client-portal client bound to one access code
func NewClient(baseURL, accessCode string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accessCode: accessCode,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error answered by the portal
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the portal
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsValidation reports whether err is a rejected input
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "validation_error"
}

// Upload is the server's receipt for an uploaded document
type Upload struct {
	Document string          `json:"document"`
	Filename string          `json:"filename"`
	Bytes    int64           `json:"bytes"`
	Progress models.Progress `json:"progress"`
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Open starts or resumes the engagement and returns its full view
func (c *Client) Open(ctx context.Context) (*models.EngagementView, error) {
	return call[*models.EngagementView](ctx, c, http.MethodGet, "/api/v1/engagement", nil)
}

// Progress returns the completion percentage and current stage
func (c *Client) Progress(ctx context.Context) (models.Progress, error) {
	return call[models.Progress](ctx, c, http.MethodGet, "/api/v1/engagement/progress", nil)
}

// SetDocument marks a required document as received or not
func (c *Client) SetDocument(ctx context.Context, name string, received bool) (models.Progress, error) {
	return callJSON[models.Progress](ctx, c, http.MethodPut,
		"/api/v1/engagement/documents/"+url.PathEscape(name), models.SetDocumentRequest{Received: &received})
}

// UploadDocument sends a file for a required document, marking it received
func (c *Client) UploadDocument(ctx context.Context, name, filename string, content io.Reader) (*Upload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost,
		"/api/v1/engagement/documents/"+url.PathEscape(name)+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	return decode[*Upload](body)
}

// SetInstallment marks an installment (1-based) as paid or not
func (c *Client) SetInstallment(ctx context.Context, ordinal int, paid bool) (models.Progress, error) {
	return callJSON[models.Progress](ctx, c, http.MethodPut,
		"/api/v1/engagement/installments/"+strconv.Itoa(ordinal), models.SetInstallmentRequest{Paid: &paid})
}

// SetStage overrides a stage's completion
func (c *Client) SetStage(ctx context.Context, name string, completed bool) (models.Progress, error) {
	return callJSON[models.Progress](ctx, c, http.MethodPut,
		"/api/v1/engagement/stages/"+url.PathEscape(name), models.SetStageRequest{Completed: &completed})
}

// RecordMeeting appends a meeting to the log. date is YYYY-MM-DD.
func (c *Client) RecordMeeting(ctx context.Context, date, summary string) (*models.MeetingRecord, error) {
	return callJSON[*models.MeetingRecord](ctx, c, http.MethodPost,
		"/api/v1/engagement/meetings", models.RecordMeetingRequest{Date: date, Summary: summary})
}

// Meetings returns the meeting log in recording order
func (c *Client) Meetings(ctx context.Context) ([]models.MeetingRecord, error) {
	data, err := call[struct {
		Meetings []models.MeetingRecord `json:"meetings"`
		Total    int                    `json:"total"`
	}](ctx, c, http.MethodGet, "/api/v1/engagement/meetings", nil)
	if err != nil {
		return nil, err
	}
	return data.Meetings, nil
}

// Close ends the engagement session
func (c *Client) Close(ctx context.Context) error {
	_, err := call[map[string]string](ctx, c, http.MethodDelete, "/api/v1/engagement", nil)
	return err
}

// Offerings lists the public service catalog
func (c *Client) Offerings(ctx context.Context) ([]*models.OfferingSummary, error) {
	data, err := call[struct {
		Offerings []*models.OfferingSummary `json:"offerings"`
		Total     int                       `json:"total"`
	}](ctx, c, http.MethodGet, "/api/v1/catalog/offerings", nil)
	if err != nil {
		return nil, err
	}
	return data.Offerings, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", "", nil)
	return err
}

func callJSON[T any](ctx context.Context, c *Client, method, path string, payload interface{}) (T, error) {
	var zero T
	body, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal request: %w", err)
	}
	return call[T](ctx, c, method, path, bytes.NewReader(body))
}

func call[T any](ctx context.Context, c *Client, method, path string, body io.Reader) (T, error) {
	var zero T
	resp, err := c.doRequest(ctx, method, path, "application/json", body)
	if err != nil {
		return zero, err
	}
	return decode[T](resp)
}

func decode[T any](body []byte) (T, error) {
	var result envelope[T]
	if err := json.Unmarshal(body, &result); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result.Data, nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.accessCode != "" {
		req.Header.Set(AccessCodeHeader, c.accessCode)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "http_error", Message: string(respBody)}
		var result envelope[json.RawMessage]
		if json.Unmarshal(respBody, &result) == nil && result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return nil, apiErr
	}

	return respBody, nil
}
