package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// UploadFile is one file staged for a commit.
type UploadFile struct {
	// Path of the file within the repository.
	Path string
	// Local source file.
	Source string
}

type createRepoRequest struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Type         string `json:"type"`
	Private      bool   `json:"private"`
}

type commitHeader struct {
	Summary string `json:"summary"`
}

type commitFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type commitLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Upload pushes files to a model repository, creating it if needed. Best
// effort in the sense that the caller decides whether a failure is fatal;
// the client itself never retries.
func (c *Client) Upload(ctx context.Context, repo, summary string, files []UploadFile) error {
	if c.token == "" {
		return fmt.Errorf("upload to %s: no hub token configured", repo)
	}
	if err := c.createRepo(ctx, repo); err != nil {
		return err
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	if err := enc.Encode(commitLine{Key: "header", Value: commitHeader{Summary: summary}}); err != nil {
		return err
	}
	for _, f := range files {
		raw, err := os.ReadFile(f.Source)
		if err != nil {
			return fmt.Errorf("upload %s: %w", repo, err)
		}
		path := f.Path
		if path == "" {
			path = filepath.Base(f.Source)
		}
		line := commitLine{Key: "file", Value: commitFile{
			Path:     path,
			Content:  base64.StdEncoding.EncodeToString(raw),
			Encoding: "base64",
		}}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}

	url := fmt.Sprintf("%s/api/models/%s/commit/main", c.baseURL, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-ndjson")

	c.log.Info("uploading to hub", "repo", repo, "files", len(files))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", repo, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload %s: unexpected status %s", repo, resp.Status)
	}
	return nil
}

// createRepo creates the model repo, treating "already exists" as success.
func (c *Client) createRepo(ctx context.Context, repo string) error {
	owner, name := splitRepo(repo)
	payload, err := json.Marshal(createRepoRequest{
		Name:         name,
		Organization: owner,
		Type:         "model",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/repos/create", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("create repo %s: %w", repo, err)
	}
	defer func() { _ = resp.Body.Close() }()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		// Repo already exists.
		return nil
	default:
		return fmt.Errorf("create repo %s: unexpected status %s", repo, resp.Status)
	}
}

func splitRepo(repo string) (owner, name string) {
	for i := range repo {
		if repo[i] == '/' {
			return repo[:i], repo[i+1:]
		}
	}
	return "", repo
}
