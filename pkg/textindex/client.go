// Package textindex is a client for the asynchronous add-to-text-index API:
// submit documents, files, object store references or URLs to a text index
// and poll the returned job for its status and result.
package textindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/textindex/pkg/models"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Client is the interface for the add-to-text-index API.
// Implementations must be safe for concurrent use.
type Client interface {
	SubmitJSON(ctx context.Context, apiKey string, docs Documents, index string, params Params) (models.JobID, error)
	SubmitFile(ctx context.Context, apiKey string, file File, index string, params Params) (models.JobID, error)
	SubmitReference(ctx context.Context, apiKey, reference, index string, params Params) (models.JobID, error)
	SubmitURL(ctx context.Context, apiKey, url, index string, params Params) (models.JobID, error)
	GetStatus(ctx context.Context, jobID models.JobID, opts ...CallOption) (*JobStatus, error)
	GetResult(ctx context.Context, jobID models.JobID, opts ...CallOption) (*JobStatus, error)
}

// IndexResult is the result payload of a finished add-to-text-index action.
type IndexResult struct {
	Index      string             `json:"index"`
	References []IndexedReference `json:"references"`
}

// IndexedReference is one document accepted into the index.
type IndexedReference struct {
	Reference string `json:"reference"`
	ID        int    `json:"id"`
}

// JobStatus is the status or result body of an add-to-text-index job.
type JobStatus = models.JobStatus[IndexResult]

type callOptions struct {
	apiKey string
}

// CallOption customises a polling call.
type CallOption func(*callOptions)

// WithAPIKey authenticates the call with key instead of the client's default key.
func WithAPIKey(key string) CallOption {
	return func(o *callOptions) {
		o.apiKey = key
	}
}

// HTTPClient implements Client over the API's HTTP surface.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a client for the API rooted at baseURL. apiKey is the
// default key used when a call does not supply one; it may be empty.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newHTTPClient(timeout),
	}
}

// SubmitJSON indexes documents, sent as JSON in the "json" part.
func (c *HTTPClient) SubmitJSON(ctx context.Context, apiKey string, docs Documents, index string, params Params) (models.JobID, error) {
	content, err := jsonContent(docs)
	if err != nil {
		return "", &Error{Op: "submit json", Err: err}
	}
	return c.submit(ctx, "submit json", apiKey, content, index, params)
}

// SubmitFile indexes the content of a file, streamed in the "file" part.
func (c *HTTPClient) SubmitFile(ctx context.Context, apiKey string, file File, index string, params Params) (models.JobID, error) {
	content, err := fileContent(file)
	if err != nil {
		return "", &Error{Op: "submit file", Err: err}
	}
	return c.submit(ctx, "submit file", apiKey, content, index, params)
}

// SubmitReference indexes a previously uploaded object store object.
func (c *HTTPClient) SubmitReference(ctx context.Context, apiKey, reference, index string, params Params) (models.JobID, error) {
	content, err := fieldContent(partReference, reference)
	if err != nil {
		return "", &Error{Op: "submit reference", Err: err}
	}
	return c.submit(ctx, "submit reference", apiKey, content, index, params)
}

// SubmitURL indexes the document found at a publicly accessible URL.
func (c *HTTPClient) SubmitURL(ctx context.Context, apiKey, url, index string, params Params) (models.JobID, error) {
	content, err := fieldContent(partURL, url)
	if err != nil {
		return "", &Error{Op: "submit url", Err: err}
	}
	return c.submit(ctx, "submit url", apiKey, content, index, params)
}

// GetStatus returns the current status of a job, including the result once it has finished.
func (c *HTTPClient) GetStatus(ctx context.Context, jobID models.JobID, opts ...CallOption) (*JobStatus, error) {
	return c.poll(ctx, "get status", jobStatusPath, jobID, opts)
}

// GetResult returns the result of a job. The server holds the request until
// the job completes or its own wait limit is reached.
func (c *HTTPClient) GetResult(ctx context.Context, jobID models.JobID, opts ...CallOption) (*JobStatus, error) {
	return c.poll(ctx, "get result", jobResultPath, jobID, opts)
}

func (c *HTTPClient) submit(ctx context.Context, op, apiKey string, content contentPart, index string, params Params) (models.JobID, error) {
	httpReq, err := c.newSubmitRequest(ctx, apiKey, content, index, params)
	if err != nil {
		return "", &Error{Op: op, Err: err}
	}

	body, err := c.do(op, httpReq)
	if err != nil {
		return "", err
	}

	var resp struct {
		JobID models.JobID `json:"jobID"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &Error{Op: op, Err: fmt.Errorf("%w: decoding job id: %v", ErrInvalidResponse, err)}
	}
	if resp.JobID == "" {
		if details := parseIodErrors(body); len(details) > 0 {
			return "", &Error{Op: op, Details: details, Err: ErrServer}
		}
		return "", &Error{Op: op, Err: fmt.Errorf("%w: missing jobID", ErrInvalidResponse)}
	}
	return resp.JobID, nil
}

func (c *HTTPClient) poll(ctx context.Context, op, path string, jobID models.JobID, opts []CallOption) (*JobStatus, error) {
	httpReq, err := c.newPollRequest(ctx, path, jobID, opts)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}

	body, err := c.do(op, httpReq)
	if err != nil {
		return nil, err
	}

	var status JobStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: decoding job status: %v", ErrInvalidResponse, err)}
	}
	if status.JobID == "" || status.Status == "" {
		if details := parseIodErrors(body); len(details) > 0 {
			return nil, &Error{Op: op, Details: details, Err: ErrServer}
		}
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: missing jobID or status", ErrInvalidResponse)}
	}
	if status.Actions == nil {
		status.Actions = []models.Action[IndexResult]{}
	}
	return &status, nil
}

// do sends the request and returns the body of a 2xx response.
func (c *HTTPClient) do(op string, httpReq *http.Request) ([]byte, error) {
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Op: op, Err: classifyError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Err: classifyError(err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Details:    parseIodErrors(body),
			Err:        ErrServer,
		}
	}
	return body, nil
}

func (c *HTTPClient) resolveKey(apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	return c.apiKey
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
