// Package recommend talks to the external recommendation service.
//
// The service is read-only and owns all scoring. It returns movie ids exactly
// as the catalog stores them ("s8807"), and this package passes them through
// untouched: no trimming, no case changes.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sakif/moviecatalog/internal/apperror"
)

// Sections of a Result.
const (
	SectionCollaborative = "collaborative"
	SectionContentBased  = "contentBased"
)

// ErrUnavailable wraps transport failures and 5xx answers.
var ErrUnavailable = errors.New("recommend: service unavailable")

// Result is the body of GET /recommendations/{userId}.
type Result struct {
	Collaborative []string            `json:"collaborative"`
	ContentBased  []string            `json:"contentBased"`
	Genres        map[string][]string `json:"genres"`
}

// Section returns the ids of a named section. Anything that is not one of the
// two fixed sections is looked up as a genre name.
func (r *Result) Section(name string) ([]string, bool) {
	switch name {
	case SectionCollaborative:
		return r.Collaborative, true
	case SectionContentBased:
		return r.ContentBased, true
	}
	ids, ok := r.Genres[name]
	return ids, ok
}

// Page is the body of GET /recommendations/{userId}/more.
type Page struct {
	Section  string   `json:"section"`
	Page     int      `json:"page"`
	MovieIDs []string `json:"movieIds"`
	HasMore  bool     `json:"hasMore"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the service at baseURL. A nil httpClient
// gets one with a 5 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Get fetches every section for the user.
func (c *Client) Get(ctx context.Context, userID int64) (*Result, error) {
	var res Result
	path := "/recommendations/" + strconv.FormatInt(userID, 10)
	if err := c.getJSON(ctx, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// More fetches one page of one section. Pages are numbered from 1.
func (c *Client) More(ctx context.Context, userID int64, section string, page, limit int) (*Page, error) {
	q := url.Values{}
	q.Set("section", section)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var p Page
	path := "/recommendations/" + strconv.FormatInt(userID, 10) + "/more"
	if err := c.getJSON(ctx, path, q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("recommend: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NotFound("recommendations", path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("recommend: GET %s: status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("recommend: decoding %s: %w", path, err)
	}
	return nil
}
