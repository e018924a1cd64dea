package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pagesmith-deployment/internal/models"
)

// ErrNotFound is returned when a repository, file or pages configuration
// does not exist.
var ErrNotFound = errors.New("not found")

// TransientError marks provider failures worth retrying at the caller.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return e.Cause.Error() }

func (e *TransientError) Unwrap() error { return e.Cause }

// API is the hosting provider capability surface the repository state
// manager depends on.
type API interface {
	FindRepo(ctx context.Context, name string) (*models.RepoState, error)
	CreateRepo(ctx context.Context, name string) (*models.RepoState, error)
	UpsertFile(ctx context.Context, repo, path, message, content string) (string, error)
	GetFile(ctx context.Context, repo, path string) (string, error)
	EnableStaticHosting(ctx context.Context, repo string) error
	GetHostingStatus(ctx context.Context, repo string) (models.HostingStatus, error)
}

// Client implements API against the GitHub REST API.
type Client struct {
	baseURL string
	token   string
	owner   string
	client  *http.Client
}

func NewClient(baseURL, token, owner string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		owner:   owner,
		client:  &http.Client{Timeout: timeout},
	}
}

type repoResponse struct {
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

func (c *Client) FindRepo(ctx context.Context, name string) (*models.RepoState, error) {
	var repo repoResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", c.owner, name), nil, &repo)
	if err != nil {
		return nil, err
	}
	return c.repoState(repo), nil
}

func (c *Client) CreateRepo(ctx context.Context, name string) (*models.RepoState, error) {
	payload := map[string]interface{}{
		"name":        name,
		"auto_init":   true,
		"description": "Generated by pagesmith",
	}
	var repo repoResponse
	if err := c.do(ctx, http.MethodPost, "/user/repos", payload, &repo); err != nil {
		return nil, err
	}
	return c.repoState(repo), nil
}

type contentsResponse struct {
	SHA string `json:"sha"`
}

type upsertResponse struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// UpsertFile creates or overwrites one file and returns the commit SHA.
// The contents API requires the existing blob SHA on overwrite.
func (c *Client) UpsertFile(ctx context.Context, repo, path, message, content string) (string, error) {
	contentsPath := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repo, path)

	payload := map[string]interface{}{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}

	var existing contentsResponse
	err := c.do(ctx, http.MethodGet, contentsPath, nil, &existing)
	switch {
	case err == nil:
		payload["sha"] = existing.SHA
	case !errors.Is(err, ErrNotFound):
		return "", err
	}

	var result upsertResponse
	if err := c.do(ctx, http.MethodPut, contentsPath, payload, &result); err != nil {
		return "", err
	}
	return result.Commit.SHA, nil
}

type fileResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (c *Client) GetFile(ctx context.Context, repo, path string) (string, error) {
	var file fileResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repo, path), nil, &file); err != nil {
		return "", err
	}
	if file.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(file.Content)
		if err != nil {
			return "", fmt.Errorf("failed to decode file content: %v", err)
		}
		return string(decoded), nil
	}
	return file.Content, nil
}

func (c *Client) EnableStaticHosting(ctx context.Context, repo string) error {
	payload := map[string]interface{}{
		"source": map[string]string{"branch": "main", "path": "/"},
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pages", c.owner, repo), payload, nil)
	// 409 means pages is already configured, which is the desired state.
	var httpErr *StatusError
	if errors.As(err, &httpErr) && httpErr.Code == http.StatusConflict {
		return nil
	}
	return err
}

type pagesResponse struct {
	Status string `json:"status"`
}

func (c *Client) GetHostingStatus(ctx context.Context, repo string) (models.HostingStatus, error) {
	var pages pagesResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/pages", c.owner, repo), nil, &pages)
	if errors.Is(err, ErrNotFound) {
		return models.HostingInactive, nil
	}
	if err != nil {
		return models.HostingInactive, err
	}
	switch pages.Status {
	case "built":
		return models.HostingActive, nil
	case "building", "queued":
		return models.HostingPending, nil
	case "errored":
		return models.HostingFailed, nil
	}
	return models.HostingPending, nil
}

func (c *Client) repoState(repo repoResponse) *models.RepoState {
	return &models.RepoState{
		Name:          repo.Name,
		Exists:        true,
		DefaultBranch: repo.DefaultBranch,
		HTMLURL:       repo.HTMLURL,
		PagesURL:      fmt.Sprintf("https://%s.github.io/%s/", c.owner, repo.Name),
	}
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github returned status: %d", e.Code)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %v", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransientError{Cause: fmt.Errorf("github request failed: %v", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return &TransientError{Cause: &StatusError{Code: resp.StatusCode}}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode github response: %v", err)
	}
	return nil
}
