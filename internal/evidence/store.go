// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evidence is the session blackboard: a named-channel store through
// which pipeline stages exchange state without calling one another.
//
// Each channel has exactly one writer. The first stage that writes a channel
// owns it, and writes from any other stage are rejected with ErrNotOwner.
// Writes replace the previous value except for papers and
// paper_id_to_short_id, which merge additively and never change an existing
// key. Channels are never deleted during a session.
package evidence

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/neuroloom/pkg/types"
)

var (
	// ErrNotOwner is returned when a stage writes a channel owned by another stage.
	ErrNotOwner = errors.New("channel owned by another stage")
	// ErrType is returned when a value does not match the channel's type.
	ErrType = errors.New("wrong value type for channel")
	// ErrUnknownChannel is returned for channel names outside the contract.
	ErrUnknownChannel = errors.New("unknown channel")
)

// Store holds one session's state. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	id       string
	started  time.Time
	values   map[Channel]any
	owners   map[Channel]string
	versions map[Channel]int
	seq      int

	journal Journal
	logger  *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithJournal records every accepted write in j.
func WithJournal(j Journal) Option {
	return func(s *Store) { s.journal = j }
}

// WithLogger sets the logger used for journal failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Store) { s.id = id }
}

// New creates an empty store for a new session.
func New(opts ...Option) *Store {
	s := &Store{
		id:       uuid.NewString(),
		started:  time.Now().UTC(),
		values:   make(map[Channel]any),
		owners:   make(map[Channel]string),
		versions: make(map[Channel]int),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Store) ID() string {
	return s.id
}

// Apply writes every channel in u on behalf of stage. The update is
// validated as a whole first: if any channel is rejected, nothing is written.
func (s *Store) Apply(stage string, u Update) error {
	if stage == "" {
		return fmt.Errorf("apply: empty stage name")
	}
	if len(u) == 0 {
		return nil
	}

	s.mu.Lock()
	for ch, v := range u {
		if err := checkType(ch, v); err != nil {
			s.mu.Unlock()
			return err
		}
		if owner, ok := s.owners[ch]; ok && owner != stage {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s writes %s owned by %s", ErrNotOwner, stage, ch, owner)
		}
	}

	var entries []Entry
	for _, ch := range Channels {
		v, ok := u[ch]
		if !ok {
			continue
		}
		s.owners[ch] = stage
		s.seq++
		s.versions[ch] = s.seq
		stored := s.store(ch, v)
		if s.journal != nil {
			entries = append(entries, s.entry(stage, ch, stored))
		}
	}
	s.mu.Unlock()

	for _, e := range entries {
		if err := s.journal.Record(e); err != nil {
			s.logger.Warn("journal write failed",
				zap.String("channel", string(e.Channel)), zap.Int("seq", e.Seq), zap.Error(err))
		}
	}
	return nil
}

// store saves a private copy of v and returns the value now held by ch.
// Caller holds s.mu.
func (s *Store) store(ch Channel, v any) any {
	switch val := v.(type) {
	case map[string]types.Paper:
		cur, _ := s.values[ch].(map[string]types.Paper)
		merged := maps.Clone(cur)
		if merged == nil {
			merged = make(map[string]types.Paper, len(val))
		}
		for k, p := range val {
			if _, exists := merged[k]; !exists {
				merged[k] = p
			}
		}
		s.values[ch] = merged
	case map[string]string:
		cur, _ := s.values[ch].(map[string]string)
		merged := maps.Clone(cur)
		if merged == nil {
			merged = make(map[string]string, len(val))
		}
		for k, id := range val {
			if _, exists := merged[k]; !exists {
				merged[k] = id
			}
		}
		s.values[ch] = merged
	case []types.Contradiction:
		s.values[ch] = slices.Clone(val)
	default:
		s.values[ch] = v
	}
	return s.values[ch]
}

func (s *Store) entry(stage string, ch Channel, v any) Entry {
	payload, err := json.Marshal(v)
	if err != nil {
		payload = []byte(fmt.Sprintf("%q", err.Error()))
	}
	return Entry{
		SessionID: s.id,
		Seq:       s.seq,
		Stage:     stage,
		Channel:   ch,
		Payload:   payload,
		WrittenAt: time.Now().UTC(),
	}
}

// Seq returns the sequence number of the most recent write (0 before any).
func (s *Store) Seq() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Version returns the sequence number of the last write to ch, 0 if the
// channel was never written. Comparing against Seq tells a reader whether a
// channel changed after a given point.
func (s *Store) Version(ch Channel) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[ch]
}

// Owner returns the stage that owns ch.
func (s *Store) Owner(ch Channel) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[ch]
	return o, ok
}

func (s *Store) str(ch Channel) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := s.values[ch].(string)
	return v
}

// Query returns the user's research question.
func (s *Store) Query() string { return s.str(UserQuery) }

// Plan returns the research plan.
func (s *Store) Plan() string { return s.str(ResearchPlan) }

// Sections returns the report outline.
func (s *Store) Sections() string { return s.str(ReportSections) }

// Hypothesis returns the hypothesis text.
func (s *Store) Hypothesis() string { return s.str(Hypothesis) }

// FinalReport returns the composed report with citation markup.
func (s *Store) FinalReport() string { return s.str(FinalReport) }

// FinalReportWithCitations returns the report after citation resolution.
func (s *Store) FinalReportWithCitations() string { return s.str(FinalReportWithCitations) }

// Retrieved returns the raw output of the latest retrieval run.
func (s *Store) Retrieved() (types.RetrievalResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[RetrievedPapers].(types.RetrievalResult)
	return v, ok
}

// Papers returns a copy of the short id→paper registry.
func (s *Store) Papers() map[string]types.Paper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := s.values[Papers].(map[string]types.Paper)
	if v == nil {
		return map[string]types.Paper{}
	}
	return maps.Clone(v)
}

// ShortIDs returns a copy of the paperId→short id mapping.
func (s *Store) ShortIDs() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := s.values[PaperIDToShortID].(map[string]string)
	if v == nil {
		return map[string]string{}
	}
	return maps.Clone(v)
}

// Contradictions returns a copy of the detected contradictions.
func (s *Store) Contradictions() []types.Contradiction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := s.values[Contradictions].([]types.Contradiction)
	return slices.Clone(v)
}

// Evaluation returns the latest research verdict.
func (s *Store) Evaluation() (types.Verdict, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[ResearchEvaluation].(types.Verdict)
	return v, ok
}

// Snapshot returns a serialisable copy of the session state.
func (s *Store) Snapshot() types.Session {
	snap := types.Session{
		ID:                       s.id,
		StartedAt:                s.started,
		UserQuery:                s.Query(),
		ResearchPlan:             s.Plan(),
		ReportSections:           s.Sections(),
		Contradictions:           s.Contradictions(),
		Hypothesis:               s.Hypothesis(),
		FinalReport:              s.FinalReport(),
		FinalReportWithCitations: s.FinalReportWithCitations(),
	}
	if r, ok := s.Retrieved(); ok {
		snap.RetrievedPapers = &r
	}
	if p := s.Papers(); len(p) > 0 {
		snap.Papers = p
	}
	if m := s.ShortIDs(); len(m) > 0 {
		snap.PaperIDToShortID = m
	}
	if v, ok := s.Evaluation(); ok {
		snap.ResearchEvaluation = &v
	}
	return snap
}

// WriteSnapshot writes the session snapshot as YAML to path.
func (s *Store) WriteSnapshot(path string) error {
	data, err := yaml.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing session snapshot: %w", err)
	}
	return nil
}
