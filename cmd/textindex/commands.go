package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/textindex/internal/config"
	"github.com/kiranshivaraju/textindex/pkg/models"
	"github.com/kiranshivaraju/textindex/pkg/textindex"
	"github.com/urfave/cli/v3"
)

var errUsage = errors.New("invalid arguments")

// newClient builds a client from the env file, with flags taking precedence.
func newClient(cmd *cli.Command) (*textindex.HTTPClient, error) {
	cfg, err := config.LoadIOD(cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := cmd.String("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if v := cmd.String("api-key"); v != "" {
		cfg.APIKey = v
	}
	if v := cmd.Duration("timeout"); v > 0 {
		cfg.Timeout = v
	}
	return textindex.NewHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
}

func submitJSONAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() == 0 {
		return fmt.Errorf("%w: at least one document file is required", errUsage)
	}

	var docs []json.RawMessage
	for _, path := range cmd.Args().Slice() {
		read, err := readDocuments(path)
		if err != nil {
			return err
		}
		docs = append(docs, read...)
	}

	return submit(ctx, cmd, func(c textindex.Client, index string, params textindex.Params) (models.JobID, error) {
		return c.SubmitJSON(ctx, "", textindex.NewDocuments(docs...), index, params)
	})
}

func submitFileAction(ctx context.Context, cmd *cli.Command) error {
	path, err := singleArg(cmd, "file path")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return submit(ctx, cmd, func(c textindex.Client, index string, params textindex.Params) (models.JobID, error) {
		return c.SubmitFile(ctx, "", textindex.File{Name: filepath.Base(path), Content: f}, index, params)
	})
}

func submitReferenceAction(ctx context.Context, cmd *cli.Command) error {
	reference, err := singleArg(cmd, "reference")
	if err != nil {
		return err
	}
	return submit(ctx, cmd, func(c textindex.Client, index string, params textindex.Params) (models.JobID, error) {
		return c.SubmitReference(ctx, "", reference, index, params)
	})
}

func submitURLAction(ctx context.Context, cmd *cli.Command) error {
	url, err := singleArg(cmd, "url")
	if err != nil {
		return err
	}
	return submit(ctx, cmd, func(c textindex.Client, index string, params textindex.Params) (models.JobID, error) {
		return c.SubmitURL(ctx, "", url, index, params)
	})
}

type submitFunc func(c textindex.Client, index string, params textindex.Params) (models.JobID, error)

// submit runs one submission and prints the job id, or the final result when
// --wait is set.
func submit(ctx context.Context, cmd *cli.Command, fn submitFunc) error {
	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}
	client, err := newClient(cmd)
	if err != nil {
		return err
	}

	jobID, err := fn(client, cmd.String("index"), params)
	if err != nil {
		return err
	}

	if !cmd.Bool("wait") {
		return printJSON(cmd, map[string]models.JobID{"jobID": jobID})
	}
	result, err := textindex.Wait(ctx, client, jobID, cmd.Duration("interval"))
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	return pollAction(ctx, cmd, textindex.Client.GetStatus)
}

func resultAction(ctx context.Context, cmd *cli.Command) error {
	return pollAction(ctx, cmd, textindex.Client.GetResult)
}

func waitAction(ctx context.Context, cmd *cli.Command) error {
	return pollAction(ctx, cmd, func(c textindex.Client, ctx context.Context, jobID models.JobID, opts ...textindex.CallOption) (*textindex.JobStatus, error) {
		return textindex.Wait(ctx, c, jobID, cmd.Duration("interval"), opts...)
	})
}

type pollFunc func(c textindex.Client, ctx context.Context, jobID models.JobID, opts ...textindex.CallOption) (*textindex.JobStatus, error)

func pollAction(ctx context.Context, cmd *cli.Command, poll pollFunc) error {
	jobID, err := singleArg(cmd, "job id")
	if err != nil {
		return err
	}
	client, err := newClient(cmd)
	if err != nil {
		return err
	}

	status, err := poll(client, ctx, models.JobID(jobID))
	if err != nil {
		return err
	}
	return printJSON(cmd, status)
}

func singleArg(cmd *cli.Command, name string) (string, error) {
	if cmd.NArg() != 1 {
		return "", fmt.Errorf("%w: exactly one %s is required", errUsage, name)
	}
	arg := strings.TrimSpace(cmd.Args().First())
	if arg == "" {
		return "", fmt.Errorf("%w: %s must not be empty", errUsage, name)
	}
	return arg, nil
}

// parseParams turns key=value pairs into Params. A repeated key keeps every
// value in order.
func parseParams(pairs []string) (textindex.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(textindex.Params, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: parameter %q must be key=value", errUsage, p)
		}
		switch existing := params[key].(type) {
		case nil:
			params[key] = value
		case string:
			params[key] = []string{existing, value}
		case []string:
			params[key] = append(existing, value)
		}
	}
	return params, nil
}

// readDocuments reads one JSON document, or an array of them, from path.
func readDocuments(path string) ([]json.RawMessage, error) {
	var (
		body []byte
		err  error
	)
	if path == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s does not contain valid JSON", errUsage, path)
	}
	if len(body) > 0 && body[0] == '[' {
		var docs []json.RawMessage
		if err := json.Unmarshal(body, &docs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return docs, nil
	}
	return []json.RawMessage{body}, nil
}

func printJSON(cmd *cli.Command, v any) error {
	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
