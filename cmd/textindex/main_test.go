package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kiranshivaraju/textindex/pkg/textindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── fake API ────────────────────────────────────────────────────────────────

type recordedSubmit struct {
	fields   map[string][]string
	file     string
	fileName string
}

type fakeAPI struct {
	mu      sync.Mutex
	submits []recordedSubmit
	polls   []string
	reject  bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if f.reject {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":4007,"reason":"Index not found"}`)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		rec := recordedSubmit{fields: r.MultipartForm.Value}
		if file, header, err := r.FormFile("file"); err == nil {
			b, _ := io.ReadAll(file)
			rec.file = string(b)
			rec.fileName = header.Filename
		}
		f.mu.Lock()
		f.submits = append(f.submits, rec)
		f.mu.Unlock()
		fmt.Fprint(w, `{"jobID":"job-cli-1"}`)
		return
	}

	f.mu.Lock()
	f.polls = append(f.polls, r.URL.Path+"?"+r.URL.RawQuery)
	f.mu.Unlock()
	fmt.Fprint(w, `{"jobID":"job-cli-1","status":"finished","actions":[{"action":"addtotextindex","status":"finished","errors":[],"result":{"index":"mydocs","references":[{"reference":"doc-1","id":3}]},"version":"v1"}]}`)
}

func (f *fakeAPI) lastSubmit(t *testing.T) recordedSubmit {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.submits)
	return f.submits[len(f.submits)-1]
}

// runCLI runs the app against api and returns what it printed.
func runCLI(t *testing.T, api http.Handler, args ...string) (string, error) {
	t.Helper()
	t.Setenv("IOD_BASE_URL", "")
	t.Setenv("IOD_API_KEY", "")

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	argv := append([]string{
		"textindex",
		"--env", filepath.Join(t.TempDir(), "missing.env"),
		"--base-url", srv.URL,
		"--api-key", "cli-key",
	}, args...)
	err := app.Run(context.Background(), argv)
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ─── submit ──────────────────────────────────────────────────────────────────

func TestSubmitURL_PrintsJobID(t *testing.T) {
	api := &fakeAPI{}

	out, err := runCLI(t, api, "submit", "url", "--index", "mydocs",
		"--param", "duplicate_mode=replace", "https://example.com/doc.pdf")
	require.NoError(t, err)

	var printed map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, "job-cli-1", printed["jobID"])

	sub := api.lastSubmit(t)
	assert.Equal(t, []string{"cli-key"}, sub.fields["apiKey"])
	assert.Equal(t, []string{"https://example.com/doc.pdf"}, sub.fields["url"])
	assert.Equal(t, []string{"mydocs"}, sub.fields["index"])
	assert.Equal(t, []string{"replace"}, sub.fields["duplicate_mode"])
}

func TestSubmitReference(t *testing.T) {
	api := &fakeAPI{}

	_, err := runCLI(t, api, "submit", "reference", "-i", "mydocs", "obj-42")
	require.NoError(t, err)
	assert.Equal(t, []string{"obj-42"}, api.lastSubmit(t).fields["reference"])
}

func TestSubmitJSON_MergesFiles(t *testing.T) {
	api := &fakeAPI{}
	one := writeTemp(t, "one.json", `{"reference":"doc-1","content":"a"}`)
	many := writeTemp(t, "many.json", `[{"reference":"doc-2"},{"reference":"doc-3"}]`)

	_, err := runCLI(t, api, "submit", "json", "--index", "mydocs", one, many)
	require.NoError(t, err)

	sub := api.lastSubmit(t)
	require.Len(t, sub.fields["json"], 1)
	var sent struct {
		Document []map[string]string `json:"document"`
	}
	require.NoError(t, json.Unmarshal([]byte(sub.fields["json"][0]), &sent))
	require.Len(t, sent.Document, 3)
	assert.Equal(t, "doc-1", sent.Document[0]["reference"])
	assert.Equal(t, "doc-3", sent.Document[2]["reference"])
}

func TestSubmitFile_StreamsContent(t *testing.T) {
	api := &fakeAPI{}
	path := writeTemp(t, "notes.txt", "hello from disk")

	_, err := runCLI(t, api, "submit", "file", "--index", "mydocs", path)
	require.NoError(t, err)

	sub := api.lastSubmit(t)
	assert.Equal(t, "hello from disk", sub.file)
	assert.Equal(t, "notes.txt", sub.fileName)
}

func TestSubmitFile_MissingFile(t *testing.T) {
	_, err := runCLI(t, &fakeAPI{}, "submit", "file", "--index", "mydocs", "/does/not/exist.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSubmit_WaitPrintsResult(t *testing.T) {
	api := &fakeAPI{}

	out, err := runCLI(t, api, "submit", "url", "--index", "mydocs", "--wait", "--interval", "10ms",
		"https://example.com/doc.pdf")
	require.NoError(t, err)

	var printed textindex.JobStatus
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, "FINISHED", string(printed.Status))
	result, ok := printed.FirstResult()
	require.True(t, ok)
	assert.Equal(t, 3, result.References[0].ID)

	require.Len(t, api.polls, 2)
	assert.Contains(t, api.polls[0], "/job/status/job-cli-1")
	assert.Contains(t, api.polls[1], "/job/result/job-cli-1")
}

func TestSubmit_UpstreamRejection(t *testing.T) {
	_, err := runCLI(t, &fakeAPI{reject: true}, "submit", "url", "--index", "missing", "https://example.com/doc.pdf")
	require.Error(t, err)

	var apiErr *textindex.Error
	require.True(t, errors.As(err, &apiErr))
	assert.ErrorIs(t, err, textindex.ErrServer)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Len(t, apiErr.Details, 1)
	assert.Equal(t, 4007, apiErr.Details[0].Code)
}

func TestSubmit_InvalidParam(t *testing.T) {
	api := &fakeAPI{}

	_, err := runCLI(t, api, "submit", "url", "--index", "mydocs", "--param", "novalue", "https://example.com/doc.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, errUsage)
	assert.Empty(t, api.submits)
}

// ─── polling ─────────────────────────────────────────────────────────────────

func TestStatus_PrintsStatusWithAPIKey(t *testing.T) {
	api := &fakeAPI{}

	out, err := runCLI(t, api, "status", "job-cli-1")
	require.NoError(t, err)

	var printed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, "job-cli-1", printed["jobID"])
	assert.Equal(t, "FINISHED", printed["status"])

	require.Len(t, api.polls, 1)
	assert.Equal(t, "/job/status/job-cli-1?apiKey=cli-key", api.polls[0])
}

func TestResult_UsesResultEndpoint(t *testing.T) {
	api := &fakeAPI{}

	_, err := runCLI(t, api, "result", "job-cli-1")
	require.NoError(t, err)
	require.Len(t, api.polls, 1)
	assert.Contains(t, api.polls[0], "/job/result/job-cli-1")
}

func TestWait_FinishedJob(t *testing.T) {
	api := &fakeAPI{}

	out, err := runCLI(t, api, "wait", "--interval", "10ms", "job-cli-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "FINISHED"`)
	assert.Len(t, api.polls, 2)
}

func TestStatus_RequiresJobID(t *testing.T) {
	_, err := runCLI(t, &fakeAPI{}, "status")
	require.Error(t, err)
	assert.ErrorIs(t, err, errUsage)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    textindex.Params
		wantErr bool
	}{
		{name: "none", pairs: nil, want: nil},
		{name: "single", pairs: []string{"duplicate_mode=duplicate"}, want: textindex.Params{"duplicate_mode": "duplicate"}},
		{name: "value with equals", pairs: []string{"meta={\"a\"=1}"}, want: textindex.Params{"meta": "{\"a\"=1}"}},
		{name: "empty value", pairs: []string{"flag="}, want: textindex.Params{"flag": ""}},
		{
			name:  "repeated key",
			pairs: []string{"tag=a", "tag=b", "tag=c"},
			want:  textindex.Params{"tag": []string{"a", "b", "c"}},
		},
		{name: "missing equals", pairs: []string{"tag"}, wantErr: true},
		{name: "empty key", pairs: []string{"=x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUsage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadDocuments(t *testing.T) {
	single := writeTemp(t, "single.json", "  {\"reference\":\"a\"}\n")
	docs, err := readDocuments(single)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, `{"reference":"a"}`, string(docs[0]))

	array := writeTemp(t, "array.json", `[{"reference":"a"},{"reference":"b"}]`)
	docs, err = readDocuments(array)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	invalid := writeTemp(t, "invalid.json", `{"reference":`)
	_, err = readDocuments(invalid)
	assert.ErrorIs(t, err, errUsage)
}
