package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MacromNex/rfdiffusion2-mcp/pkg/jobs"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/procedure"
)

// apiClient is a thin client for the rfd2mcp HTTP API used by the submit
// and jobs commands.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach server at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Code != "" {
			return &apiError{Status: resp.StatusCode, Code: envelope.Error.Code, Message: envelope.Error.Message}
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

type submitPayload struct {
	Procedure  string         `json:"procedure,omitempty"`
	Executable string         `json:"executable,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	Name       string         `json:"name,omitempty"`
	OutputDir  string         `json:"output_dir,omitempty"`
}

func (c *apiClient) submit(ctx context.Context, payload submitPayload) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", payload, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func (c *apiClient) listJobs(ctx context.Context, status string) ([]jobs.Snapshot, error) {
	path := "/v1/jobs"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Jobs []jobs.Snapshot `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *apiClient) jobStatus(ctx context.Context, jobID string) (jobs.Snapshot, error) {
	var snap jobs.Snapshot
	err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, &snap)
	return snap, err
}

func (c *apiClient) jobResult(ctx context.Context, jobID string) (jobs.ResultEnvelope, error) {
	var env jobs.ResultEnvelope
	err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID)+"/result", nil, &env)
	return env, err
}

func (c *apiClient) jobLog(ctx context.Context, jobID string, tail int) (jobs.LogView, error) {
	var view jobs.LogView
	path := fmt.Sprintf("/v1/jobs/%s/log?tail=%d", url.PathEscape(jobID), tail)
	err := c.do(ctx, http.MethodGet, path, nil, &view)
	return view, err
}

func (c *apiClient) cancelJob(ctx context.Context, jobID string) (jobs.Snapshot, error) {
	var snap jobs.Snapshot
	err := c.do(ctx, http.MethodDelete, "/v1/jobs/"+url.PathEscape(jobID), nil, &snap)
	return snap, err
}

func (c *apiClient) procedures(ctx context.Context) ([]procedure.Procedure, error) {
	var resp struct {
		Procedures []procedure.Procedure `json:"procedures"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/procedures", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Procedures, nil
}

func (c *apiClient) ligands(ctx context.Context) ([]procedure.Ligand, error) {
	var resp struct {
		Ligands []procedure.Ligand `json:"ligands"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/ligands", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Ligands, nil
}

// resolveJobID accepts a full id or a unique prefix and returns the full id.
func (c *apiClient) resolveJobID(ctx context.Context, partial string) (string, error) {
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return "", fmt.Errorf("job_id is required")
	}

	snaps, err := c.listJobs(ctx, "")
	if err != nil {
		return "", err
	}

	var matches []string
	for _, s := range snaps {
		if s.ID == partial {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, partial) {
			matches = append(matches, s.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no job matches %q", partial)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous job id %q matches %d jobs", partial, len(matches))
	}
}
