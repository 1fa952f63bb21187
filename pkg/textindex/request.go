package textindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/textindex/pkg/models"
)

const (
	addToTextIndexPath = "/api/async/addtotextindex/v1"
	jobStatusPath      = "/job/status/"
	jobResultPath      = "/job/result/"
)

// Part names used by the add-to-text-index endpoint. Params may not reuse them.
const (
	partAPIKey    = "apiKey"
	partIndex     = "index"
	partJSON      = "json"
	partFile      = "file"
	partReference = "reference"
	partURL       = "url"
)

var reservedParts = map[string]bool{
	partAPIKey:    true,
	partIndex:     true,
	partJSON:      true,
	partFile:      true,
	partReference: true,
	partURL:       true,
}

// Params holds additional parameters sent as extra multipart parts, e.g.
// "duplicate_mode" or "additional_metadata". Slice values are sent as one part
// per element and nil values are skipped.
type Params map[string]any

// Documents is a collection of values indexed as JSON documents. It is sent as
// {"document": [...]}.
type Documents struct {
	items []any
}

// NewDocuments wraps docs for SubmitJSON. Each element is marshalled with encoding/json.
func NewDocuments[T any](docs ...T) Documents {
	items := make([]any, len(docs))
	for i, d := range docs {
		items[i] = d
	}
	return Documents{items: items}
}

// Len returns the number of documents.
func (d Documents) Len() int { return len(d.items) }

func (d Documents) MarshalJSON() ([]byte, error) {
	items := d.items
	if items == nil {
		items = []any{}
	}
	return json.Marshal(struct {
		Document []any `json:"document"`
	}{Document: items})
}

// File is document content uploaded as the "file" part. Content is streamed,
// so it is read exactly once.
type File struct {
	Name    string
	Content io.Reader
}

// contentPart is the single content source of a submission.
type contentPart struct {
	name  string
	write func(w *multipart.Writer) error
}

func jsonContent(docs Documents) (contentPart, error) {
	if docs.Len() == 0 {
		return contentPart{}, fmt.Errorf("%w: at least one document is required", ErrInvalidRequest)
	}
	body, err := json.Marshal(docs)
	if err != nil {
		return contentPart{}, fmt.Errorf("%w: encoding documents: %v", ErrInvalidRequest, err)
	}
	return contentPart{
		name: partJSON,
		write: func(w *multipart.Writer) error {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, partJSON))
			h.Set("Content-Type", "application/json; charset=UTF-8")
			pw, err := w.CreatePart(h)
			if err != nil {
				return err
			}
			_, err = pw.Write(body)
			return err
		},
	}, nil
}

func fileContent(f File) (contentPart, error) {
	if f.Content == nil {
		return contentPart{}, fmt.Errorf("%w: file content is required", ErrInvalidRequest)
	}
	name := f.Name
	if name == "" {
		name = "upload"
	}
	return contentPart{
		name: partFile,
		write: func(w *multipart.Writer) error {
			pw, err := w.CreateFormFile(partFile, name)
			if err != nil {
				return err
			}
			_, err = io.Copy(pw, f.Content)
			return err
		},
	}, nil
}

func fieldContent(name, value string) (contentPart, error) {
	if strings.TrimSpace(value) == "" {
		return contentPart{}, fmt.Errorf("%w: %s is required", ErrInvalidRequest, name)
	}
	return contentPart{
		name: name,
		write: func(w *multipart.Writer) error {
			return w.WriteField(name, value)
		},
	}, nil
}

// encodeParams validates params and flattens them into ordered name/value pairs.
func encodeParams(params Params) ([][2]string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if reservedParts[k] {
			return nil, fmt.Errorf("%w: parameter %q is reserved", ErrInvalidRequest, k)
		}
		if k == "" {
			return nil, fmt.Errorf("%w: parameter name must not be empty", ErrInvalidRequest)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fields [][2]string
	for _, k := range keys {
		for _, v := range formatParam(params[k]) {
			fields = append(fields, [2]string{k, v})
		}
	}
	return fields, nil
}

func formatParam(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return t
	case bool:
		return []string{strconv.FormatBool(t)}
	case int:
		return []string{strconv.Itoa(t)}
	case int32:
		return []string{strconv.FormatInt(int64(t), 10)}
	case int64:
		return []string{strconv.FormatInt(t, 10)}
	case uint:
		return []string{strconv.FormatUint(uint64(t), 10)}
	case uint32:
		return []string{strconv.FormatUint(uint64(t), 10)}
	case uint64:
		return []string{strconv.FormatUint(t, 10)}
	// JSON-decoded numbers arrive as float64; never send them in exponent form.
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	case float32:
		return []string{strconv.FormatFloat(float64(t), 'f', -1, 32)}
	case json.Number:
		return []string{t.String()}
	case fmt.Stringer:
		return []string{t.String()}
	case []any:
		var out []string
		for _, e := range t {
			out = append(out, formatParam(e)...)
		}
		return out
	case map[string]any, []map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return []string{fmt.Sprint(t)}
		}
		return []string{string(b)}
	default:
		return []string{fmt.Sprint(t)}
	}
}

// newSubmitRequest builds the multipart POST for a submission. The body is
// written through a pipe so large files are never buffered; the Transport
// closes the reader on every path, which unblocks the writer goroutine.
func (c *HTTPClient) newSubmitRequest(ctx context.Context, apiKey string, content contentPart, index string, params Params) (*http.Request, error) {
	if strings.TrimSpace(index) == "" {
		return nil, fmt.Errorf("%w: index is required", ErrInvalidRequest)
	}
	key := c.resolveKey(apiKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	fields, err := encodeParams(params)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+addToTextIndexPath, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("%w: building request: %v", ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	go func() {
		err := writeSubmission(mw, key, content, index, fields)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return httpReq, nil
}

func writeSubmission(mw *multipart.Writer, apiKey string, content contentPart, index string, fields [][2]string) error {
	if err := mw.WriteField(partAPIKey, apiKey); err != nil {
		return err
	}
	if err := content.write(mw); err != nil {
		return err
	}
	if err := mw.WriteField(partIndex, index); err != nil {
		return err
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	return nil
}

// newPollRequest builds the GET for the status or result of a job.
func (c *HTTPClient) newPollRequest(ctx context.Context, path string, jobID models.JobID, opts []CallOption) (*http.Request, error) {
	if strings.TrimSpace(string(jobID)) == "" {
		return nil, fmt.Errorf("%w: job id is required", ErrInvalidRequest)
	}

	o := callOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	u := c.baseURL + path + url.PathEscape(string(jobID))
	if key := c.resolveKey(o.apiKey); key != "" {
		u += "?" + url.Values{partAPIKey: {key}}.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}
