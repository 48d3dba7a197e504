// Package registry is the thin client for the external trial registry. It is
// a collaborator with a narrow interface: search and single-record fetch, no
// retry or backoff policy.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trialstore/pkg/platform/sentinel"
)

// maxPageSize is the registry API's hard page limit.
const maxPageSize = 100

// Client talks to the ClinicalTrials.gov v2 API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a registry client. baseURL has no trailing slash,
// e.g. https://clinicaltrials.gov/api/v2.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type studiesResponse struct {
	Studies []struct {
		ProtocolSection *Study `json:"protocolSection"`
	} `json:"studies"`
}

type studyResponse struct {
	ProtocolSection *Study `json:"protocolSection"`
}

// Search returns up to max protocolSection objects matching the query term.
// max is capped at the API page limit.
func (c *Client) Search(ctx context.Context, query string, max int) ([]*Study, error) {
	if max < 1 {
		max = 1
	}
	if max > maxPageSize {
		max = maxPageSize
	}

	q := url.Values{}
	q.Set("query.term", query)
	q.Set("pageSize", strconv.Itoa(max))

	var resp studiesResponse
	if err := c.getJSON(ctx, c.baseURL+"/studies?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	studies := make([]*Study, 0, len(resp.Studies))
	for _, s := range resp.Studies {
		if s.ProtocolSection != nil {
			studies = append(studies, s.ProtocolSection)
		}
	}
	return studies, nil
}

// GetStudy fetches one record by NCT ID. Returns sentinel.ErrNotFound for an
// unknown identifier.
func (c *Client) GetStudy(ctx context.Context, nctID string) (*Study, error) {
	var resp studyResponse
	if err := c.getJSON(ctx, c.baseURL+"/studies/"+url.PathEscape(nctID), &resp); err != nil {
		return nil, err
	}
	if resp.ProtocolSection == nil {
		return nil, sentinel.ErrNotFound
	}
	return resp.ProtocolSection, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry request: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case res.StatusCode != http.StatusOK:
		return fmt.Errorf("registry responded %d: %w", res.StatusCode, sentinel.ErrUnavailable)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode registry response: %w", err)
	}
	return nil
}
