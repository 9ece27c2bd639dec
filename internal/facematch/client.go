// Package facematch is the HTTP client for the external face-matching
// collaborator. The engine supplies an event-scoped candidate pool; the
// collaborator owns the model.
package facematch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/attendly/attendly/internal/config"
)

var ErrNoMatch = errors.New("no face match")

type Candidate struct {
	SubjectID uint   `json:"subject_id"`
	PhotoRef  string `json:"photo_ref"`
}

type Match struct {
	SubjectID  uint    `json:"subject_id"`
	Confidence float64 `json:"confidence"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(conf *config.FaceMatchConfig) *Client {
	timeout := conf.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: conf.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type matchRequest struct {
	Image      string      `json:"image"`
	Candidates []Candidate `json:"candidates"`
}

// Match submits a base64 image and the candidate pool. The collaborator
// answers with its best candidate and a confidence score; thresholding is
// the caller's decision.
func (c *Client) Match(ctx context.Context, image string, pool []Candidate) (Match, error) {
	body, err := json.Marshal(matchRequest{
		Image:      image,
		Candidates: pool,
	})
	if err != nil {
		return Match{}, fmt.Errorf("json.Marshal -> %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/match", bytes.NewReader(body))
	if err != nil {
		return Match{}, fmt.Errorf("http.NewRequestWithContext -> %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Match{}, fmt.Errorf("c.httpClient.Do -> %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var match Match
		if err = json.NewDecoder(resp.Body).Decode(&match); err != nil {
			return Match{}, fmt.Errorf("json.Decode -> %w", err)
		}
		return match, nil
	case http.StatusNotFound:
		return Match{}, ErrNoMatch
	default:
		return Match{}, fmt.Errorf("face matcher returned status %v", resp.StatusCode)
	}
}
