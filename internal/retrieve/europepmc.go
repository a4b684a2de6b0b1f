// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/neuroloom/internal/httputil"
)

// europePMCSearchBase is the Europe PMC REST search endpoint. Declared as a
// var so tests can substitute an httptest server.
var europePMCSearchBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// EuropePMCClient queries the Europe PMC search API with cursor pagination.
type EuropePMCClient struct {
	Client    *http.Client
	UserAgent string
	// Email is sent as the email parameter so Europe PMC can contact heavy users.
	Email      string
	MaxRetries int
	Logger     *zap.Logger
}

// Search fetches one page of core results for req.
func (c *EuropePMCClient) Search(ctx context.Context, req SearchRequest) (SearchPage, error) {
	if strings.TrimSpace(req.Query) == "" {
		return SearchPage{}, fmt.Errorf("empty Europe PMC query")
	}
	cursor := req.CursorMark
	if cursor == "" {
		cursor = StartCursor
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	params := url.Values{
		"query":      {req.Query},
		"format":     {"json"},
		"resultType": {"core"},
		"cursorMark": {cursor},
		"pageSize":   {strconv.Itoa(pageSize)},
	}
	if c.Email != "" {
		params.Set("email", c.Email)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, europePMCSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return SearchPage{}, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}
	httpReq.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, httpReq, c.MaxRetries, c.Logger)
	if err != nil {
		return SearchPage{}, fmt.Errorf("Europe PMC API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SearchPage{}, fmt.Errorf("Europe PMC API returned HTTP %d", resp.StatusCode)
	}

	var body europePMCResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return SearchPage{}, fmt.Errorf("parsing Europe PMC response: %w", err)
	}

	page := SearchPage{NextCursor: body.NextCursorMark}
	for i, raw := range body.ResultList.Result {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			nopIfNil(c.Logger).Debug("skipping malformed search record", zap.Int("index", i), zap.Error(err))
			continue
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Europe PMC API JSON structures.
type europePMCResponse struct {
	HitCount       int    `json:"hitCount"`
	NextCursorMark string `json:"nextCursorMark"`
	ResultList     struct {
		Result []json.RawMessage `json:"result"`
	} `json:"resultList"`
}

// Record is one raw search result. Every field may be missing.
type Record struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	PubYear      flexYear        `json:"pubYear"`
	JournalTitle string          `json:"journalTitle"`
	JournalInfo  *journalInfo    `json:"journalInfo"`
	AuthorList   authorList      `json:"authorList"`
	FullText     fullTextURLList `json:"fullTextUrlList"`
}

type journalInfo struct {
	Journal struct {
		Title string `json:"title"`
	} `json:"journal"`
}

type authorList struct {
	Author []json.RawMessage `json:"author"`
}

type author struct {
	FullName string `json:"fullName"`
}

type fullTextURLList struct {
	FullTextURL []FullTextURL `json:"fullTextUrl"`
}

// FullTextURL is one full-text link listed for a record.
type FullTextURL struct {
	Availability     string `json:"availability"`
	AvailabilityCode string `json:"availabilityCode"`
	DocumentStyle    string `json:"documentStyle"`
	Site             string `json:"site"`
	URL              string `json:"url"`
}

// flexYear accepts a year given as a JSON number or string. Anything else
// decodes to "absent" instead of failing the record.
type flexYear struct {
	year *int
}

func (y *flexYear) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		y.year = &n
	}
	return nil
}

// authors returns the full names of object-shaped author entries.
func (r Record) authors() []string {
	names := []string{}
	for _, raw := range r.AuthorList.Author {
		var a author
		if err := json.Unmarshal(raw, &a); err != nil || a.FullName == "" {
			continue
		}
		names = append(names, a.FullName)
	}
	return names
}

func (r Record) journal() string {
	if r.JournalTitle != "" {
		return r.JournalTitle
	}
	if r.JournalInfo != nil {
		return r.JournalInfo.Journal.Title
	}
	return ""
}
