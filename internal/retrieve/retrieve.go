// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve turns a search query into a bounded set of downloaded
// open-access PDFs. It pages through a search endpoint with an opaque
// cursor, keeps candidates that list an open-access PDF link, downloads one
// file per candidate and stops at the paper or page cap.
//
// Per-candidate failures are skipped. Failures that stop the whole batch are
// reported through the message shape of types.RetrievalResult rather than
// as a Go error.
package retrieve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/neuroloom/pkg/types"
)

const (
	// StartCursor is the cursor sentinel for the first page.
	StartCursor = "*"
	// DefaultPageSize is the number of records requested per page.
	DefaultPageSize = 25
)

// SearchRequest is one paginated search call.
type SearchRequest struct {
	Query      string
	CursorMark string
	PageSize   int
}

// SearchPage is one page of results. An empty NextCursor means the result
// set is exhausted.
type SearchPage struct {
	Records    []Record
	NextCursor string
}

// SearchClient issues paginated search requests.
type SearchClient interface {
	Search(ctx context.Context, req SearchRequest) (SearchPage, error)
}

// Downloader fetches a PDF to a local path.
type Downloader interface {
	Download(ctx context.Context, url, destPath string) error
}

// Engine runs retrieval against a search client and a downloader.
type Engine struct {
	search   SearchClient
	download Downloader
	dir      string
	pageSize int
	workers  int
	logger   *zap.Logger
}

// NewEngine builds an engine writing PDFs into cfg.PapersDir.
func NewEngine(search SearchClient, download Downloader, cfg types.RetrievalConfig, logger *zap.Logger) *Engine {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	workers := cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		search:   search,
		download: download,
		dir:      cfg.PapersDir,
		pageSize: pageSize,
		workers:  workers,
		logger:   nopIfNil(logger),
	}
}

// Dir returns the artifact directory.
func (e *Engine) Dir() string {
	return e.dir
}

// candidate is a search record that lists an open-access PDF.
type candidate struct {
	paper types.Paper
	url   string
}

// Retrieve searches for query and downloads at most maxPapers PDFs using at
// most maxPages search requests. It never panics on malformed records and
// never returns a Go error: a batch-level failure yields the message shape.
func (e *Engine) Retrieve(ctx context.Context, query string, maxPapers, maxPages int) types.RetrievalResult {
	if strings.TrimSpace(query) == "" {
		return types.RetrievalFailure(fmt.Errorf("query is empty"))
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return types.RetrievalFailure(fmt.Errorf("creating output directory %s: %w", e.dir, err))
	}

	log := e.logger.With(zap.String("query", query))
	slots := newSlots(maxPapers)
	papers := []types.Paper{}
	cursor := StartCursor

	for page := 1; page <= maxPages && !slots.full(); page++ {
		resp, err := e.search.Search(ctx, SearchRequest{Query: query, CursorMark: cursor, PageSize: e.pageSize})
		if err != nil {
			if len(papers) == 0 {
				return types.RetrievalFailure(fmt.Errorf("searching page %d: %w", page, err))
			}
			log.Warn("search failed, keeping papers already downloaded",
				zap.Int("page", page), zap.Int("papers", len(papers)), zap.Error(err))
			break
		}
		if len(resp.Records) == 0 {
			log.Debug("result set exhausted", zap.Int("page", page))
			break
		}

		var cands []candidate
		for _, rec := range resp.Records {
			c, ok := toCandidate(rec)
			if !ok {
				log.Debug("no open-access PDF", zap.String("paper_id", c.paper.PaperID))
				continue
			}
			cands = append(cands, c)
		}
		papers = append(papers, e.fetchPage(ctx, log, cands, slots)...)

		if resp.NextCursor == "" || resp.NextCursor == cursor {
			break
		}
		cursor = resp.NextCursor
	}

	log.Info("retrieval finished", zap.Int("papers", len(papers)))
	return types.RetrievalResult{Query: query, Papers: papers}
}

// fetchPage downloads candidates with at most e.workers in flight. Results
// keep page order.
func (e *Engine) fetchPage(ctx context.Context, log *zap.Logger, cands []candidate, slots *slots) []types.Paper {
	got := make([]*types.Paper, len(cands))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, c := range cands {
		if slots.full() {
			break
		}
		g.Go(func() error {
			if !slots.acquire() {
				return nil
			}
			dest := filepath.Join(e.dir, c.paper.PDFName)
			err := e.download.Download(ctx, c.url, dest)
			slots.release(err == nil)
			if err != nil {
				log.Debug("download failed", zap.String("paper_id", c.paper.PaperID), zap.String("url", c.url), zap.Error(err))
				return nil
			}
			log.Debug("downloaded", zap.String("paper_id", c.paper.PaperID), zap.String("pdf", c.paper.PDFName))
			p := c.paper
			got[i] = &p
			return nil
		})
	}
	g.Wait()

	var out []types.Paper
	for _, p := range got {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// toCandidate extracts metadata with defaults for missing fields and picks
// the first open-access PDF link. ok is false when no such link exists.
func toCandidate(rec Record) (candidate, bool) {
	paperID := strings.TrimSpace(rec.ID)
	if paperID == "" {
		paperID = types.UnknownPaperID
	}
	title := cleanTitle(rec.Title)
	if title == "" {
		title = types.UnknownTitle
	}
	p := types.Paper{
		PaperID: paperID,
		Title:   title,
		Year:    rec.PubYear.year,
		Authors: rec.authors(),
		Journal: rec.journal(),
		PDFName: types.PDFFileName(safeFileName(paperID)),
	}

	links := OpenAccessPDFLinks(rec.FullText.FullTextURL)
	if len(links) == 0 {
		return candidate{paper: p}, false
	}
	p.PDFURL = links[0]
	return candidate{paper: p, url: links[0]}, true
}

// OpenAccessPDFLinks returns, in order, the URLs whose document style is pdf
// and whose availability mentions open access.
func OpenAccessPDFLinks(links []FullTextURL) []string {
	var out []string
	for _, l := range links {
		if l.URL == "" {
			continue
		}
		if strings.EqualFold(l.DocumentStyle, "pdf") && strings.Contains(strings.ToLower(l.Availability), "open") {
			out = append(out, l.URL)
		}
	}
	return out
}

// safeFileName keeps path separators out of artifact names.
func safeFileName(id string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(id)
}

// slots guards the paper cap across concurrent downloads. A download must
// reserve a slot before starting; a reservation is returned when the
// download fails, so the cap is never exceeded and never under-filled while
// candidates remain.
type slots struct {
	mu       sync.Mutex
	cond     *sync.Cond
	max      int
	done     int
	inflight int
}

func newSlots(max int) *slots {
	s := &slots{max: max}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// acquire blocks while every free slot is reserved by an in-flight download.
// It returns false once the cap has been reached.
func (s *slots) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.done < s.max && s.done+s.inflight >= s.max {
		s.cond.Wait()
	}
	if s.done >= s.max {
		return false
	}
	s.inflight++
	return true
}

func (s *slots) release(ok bool) {
	s.mu.Lock()
	s.inflight--
	if ok {
		s.done++
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *slots) full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done >= s.max
}
