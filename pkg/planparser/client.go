// Package planparser provides the public Go client for the plan parser API.
package planparser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is the plan parser API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string
	// APIKey is sent as X-API-Key when set.
	APIKey string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
	// Timeout applies when HTTPClient is nil.
	Timeout time.Duration
}

// NewClient creates a new plan parser client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8086"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// APIError is returned when the server responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("plan parser API: %d %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("plan parser API: %d %s", e.StatusCode, e.Message)
}

// UploadOptions control workbook ingestion.
type UploadOptions struct {
	// Sheet selects a worksheet by name. Empty means the first sheet.
	Sheet string
	// GroupColumns forces forward-fill on the named columns.
	GroupColumns []string
}

// UploadResult summarizes one ingested workbook.
type UploadResult struct {
	Message        string   `json:"message"`
	MetadataID     string   `json:"metadata_id"`
	SheetName      string   `json:"sheet_name"`
	HeaderRowCount int      `json:"header_row_count"`
	Columns        []string `json:"columns"`
	RowsParsed     int      `json:"rows_parsed"`
	RecordsCreated int      `json:"records_created"`
	DurationMS     int64    `json:"duration_ms"`
}

// Upload ingests an Excel workbook and returns the extraction summary.
func (c *Client) Upload(ctx context.Context, r io.Reader, filename string, opts UploadOptions) (*UploadResult, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	if opts.Sheet != "" {
		if err := form.WriteField("sheet", opts.Sheet); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	if len(opts.GroupColumns) > 0 {
		if err := form.WriteField("group_columns", strings.Join(opts.GroupColumns, ",")); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	var result UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/production/upload", nil, &buf, form.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Dates holds the four canonical milestone dates in dd/mm/yyyy form.
type Dates struct {
	Fabric   *string `json:"fabric,omitempty"`
	Cutting  *string `json:"cutting,omitempty"`
	Sewing   *string `json:"sewing,omitempty"`
	Shipping *string `json:"shipping,omitempty"`
}

// Stage holds the extracted field values for one production stage.
type Stage struct {
	StageName string         `json:"stage_name"`
	Fields    map[string]any `json:"fields"`
}

// Source identifies the workbook a record was extracted from.
type Source struct {
	File  string `json:"file"`
	Sheet string `json:"sheet"`
}

// Record represents one production order line item.
type Record struct {
	ID          string           `json:"id"`
	OrderNumber string           `json:"order_number"`
	Style       string           `json:"style"`
	Fabric      *string          `json:"fabric,omitempty"`
	Color       *string          `json:"color,omitempty"`
	Quantity    int              `json:"quantity"`
	Status      string           `json:"status"`
	Dates       *Dates           `json:"dates,omitempty"`
	Stages      map[string]Stage `json:"stages,omitempty"`
	StageOrder  []string         `json:"stage_order"`
	Source      *Source          `json:"source,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// RecordListOptions filter and page record listings.
type RecordListOptions struct {
	Style       string
	Status      string
	OrderNumber string
	Skip        int
	Limit       int
}

// RecordList is one page of records.
type RecordList struct {
	Items []Record `json:"items"`
	Total int      `json:"total"`
	Skip  int      `json:"skip"`
	Limit int      `json:"limit"`
}

// ListRecords returns records matching the filter.
func (c *Client) ListRecords(ctx context.Context, opts RecordListOptions) (*RecordList, error) {
	query := url.Values{}
	if opts.Style != "" {
		query.Set("style", opts.Style)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.OrderNumber != "" {
		query.Set("order_number", opts.OrderNumber)
	}
	if opts.Skip > 0 {
		query.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var result RecordList
	if err := c.do(ctx, http.MethodGet, "/api/v1/production", query, nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRecord fetches one record by ID.
func (c *Client) GetRecord(ctx context.Context, id string) (*Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, "/api/v1/production/"+url.PathEscape(id), nil, nil, "", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteRecord deletes one record by ID.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/production/"+url.PathEscape(id), nil, nil, "", nil)
}

// GetRecordByOrder fetches one record by order number.
func (c *Client) GetRecordByOrder(ctx context.Context, orderNumber string) (*Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, "/api/v1/production/order/"+url.PathEscape(orderNumber), nil, nil, "", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertRecordRequest carries the writable fields of a record.
type UpsertRecordRequest struct {
	Style      string           `json:"style"`
	Fabric     *string          `json:"fabric,omitempty"`
	Color      *string          `json:"color,omitempty"`
	Quantity   int              `json:"quantity"`
	Status     string           `json:"status,omitempty"`
	Dates      *Dates           `json:"dates,omitempty"`
	Stages     map[string]Stage `json:"stages,omitempty"`
	StageOrder []string         `json:"stage_order,omitempty"`
}

// UpsertRecord creates or replaces the record for an order number.
func (c *Client) UpsertRecord(ctx context.Context, orderNumber string, req UpsertRecordRequest) (*Record, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	var rec Record
	path := "/api/v1/production/order/" + url.PathEscape(orderNumber)
	if err := c.do(ctx, http.MethodPut, path, nil, bytes.NewReader(body), "application/json", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Metadata is the audit trail for one ingested workbook.
type Metadata struct {
	ID             string          `json:"id"`
	SourceFile     string          `json:"source_file"`
	SourceSheet    string          `json:"source_sheet"`
	HeaderRowCount int             `json:"header_row_count"`
	OriginalRows   int             `json:"original_rows"`
	OriginalCols   int             `json:"original_cols"`
	FinalRows      int             `json:"final_rows"`
	FinalCols      int             `json:"final_cols"`
	Columns        []string        `json:"columns"`
	ColumnsFilled  []string        `json:"columns_filled"`
	CellsFilled    int             `json:"cells_filled"`
	RecordsCreated int             `json:"records_created"`
	ColumnMapping  json.RawMessage `json:"column_mapping"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MetadataList is one page of metadata entries.
type MetadataList struct {
	Items []Metadata `json:"items"`
	Total int        `json:"total"`
	Skip  int        `json:"skip"`
	Limit int        `json:"limit"`
}

// MetadataListOptions filter and page metadata listings.
type MetadataListOptions struct {
	SourceFile string
	Skip       int
	Limit      int
}

// ListMetadata returns extraction metadata entries, newest first.
func (c *Client) ListMetadata(ctx context.Context, opts MetadataListOptions) (*MetadataList, error) {
	query := url.Values{}
	if opts.SourceFile != "" {
		query.Set("source_file", opts.SourceFile)
	}
	if opts.Skip > 0 {
		query.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var result MetadataList
	if err := c.do(ctx, http.MethodGet, "/api/v1/metadata", query, nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMetadata fetches one metadata entry by ID.
func (c *Client) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	var meta Metadata
	if err := c.do(ctx, http.MethodGet, "/api/v1/metadata/"+url.PathEscape(id), nil, nil, "", &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Health checks the service health.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, "", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// do executes one request and decodes the JSON response into out when the
// server reports success. Error bodies decode into APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		var payload struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Detail = payload.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
