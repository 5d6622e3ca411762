// Package mirror pushes board files to a GitHub repository through the
// contents API so the shared copy survives the machine the board runs on.
//
// Writes are optimistically locked: the current blob sha is fetched first
// and sent with the PUT, so a concurrent editor surfaces as ErrConflict
// instead of a silent overwrite.
package mirror

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrConflict means the remote file changed since the last load; the caller
// should reload and retry.
var ErrConflict = errors.New("remote file changed, reload and retry")

const defaultAPIBase = "https://api.github.com"

type GitHub struct {
	Token  string
	Owner  string
	Repo   string
	Branch string
	// APIBase overrides the GitHub endpoint; used by tests and GHE setups.
	APIBase        string
	CommitterEmail string
	HTTPClient     *http.Client
}

func (g *GitHub) client() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return &http.Client{Timeout: 20 * time.Second}
}

func (g *GitHub) contentsURL(remotePath string) string {
	base := g.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", base, g.Owner, g.Repo, remotePath)
}

func (g *GitHub) branch() string {
	if g.Branch == "" {
		return "main"
	}
	return g.Branch
}

// Push uploads content to remotePath on the configured branch, committing
// as the acting user. One retry on 429, honoring Retry-After.
func (g *GitHub) Push(ctx context.Context, remotePath string, content []byte, message, committer string) error {
	sha, err := g.currentSHA(ctx, remotePath)
	if err != nil {
		return err
	}

	email := g.CommitterEmail
	if email == "" {
		email = "noreply@example.com"
	}
	if committer == "" {
		committer = "taskboard"
	}
	payload := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  g.branch(),
		"committer": map[string]string{
			"name":  committer,
			"email": email,
		},
	}
	if sha != "" {
		payload["sha"] = sha
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	resp, err := g.put(ctx, remotePath, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp.Header)
		drain(resp)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if resp, err = g.put(ctx, remotePath, body); err != nil {
			return err
		}
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w (path %s)", ErrConflict, remotePath)
	case http.StatusUnauthorized:
		return errors.New("github: 401 unauthorized, token is invalid or expired")
	case http.StatusForbidden:
		return errors.New("github: 403 forbidden, token lacks contents write or branch is protected")
	case http.StatusNotFound:
		return fmt.Errorf("github: 404 not found, check owner/repo/path/branch (%s)", remotePath)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return fmt.Errorf("github: push failed with %d: %s", resp.StatusCode, snippet)
	}
}

// currentSHA fetches the blob sha of the remote file, or "" when the file
// does not exist yet.
func (g *GitHub) currentSHA(ctx context.Context, remotePath string) (string, error) {
	u := g.contentsURL(remotePath) + "?ref=" + url.QueryEscape(g.branch())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build sha request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch remote sha: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}
	var body struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode sha response: %w", err)
	}
	return body.SHA, nil
}

func (g *GitHub) put(ctx context.Context, remotePath string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.contentsURL(remotePath), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to push to github: %w", err)
	}
	return resp, nil
}

func (g *GitHub) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "taskboard")
}

func retryAfter(h http.Header) time.Duration {
	if secs, err := strconv.ParseFloat(h.Get("Retry-After"), 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 5 * time.Second
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
