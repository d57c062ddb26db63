package types

import (
	"sync"
	"time"

	"github.com/debaseonomics/debasex/pkg/readmodel"
	"github.com/debaseonomics/debasex/pkg/subgraph"
)

// State is the in-memory read model the HTTP surface renders from.
// Each refresh result updates only its own part; the rest keeps its last known value.
type State struct {
	agg *readmodel.Aggregator

	mu            sync.RWMutex
	chain         readmodel.ChainState
	history       []subgraph.RebaseEvent
	series        readmodel.Series
	historyLoaded bool
	historyErr    error
	refreshedAt   time.Time
}

// Snapshot is a consistent copy of State with scalars computed at read time.
type Snapshot struct {
	Scalars      readmodel.Scalars      `json:"scalars"`
	Series       readmodel.Series       `json:"series"`
	History      []subgraph.RebaseEvent `json:"history"`
	HistoryError string                 `json:"historyError,omitempty"`
	RefreshedAt  time.Time              `json:"refreshedAt"`
}

func NewState(agg *readmodel.Aggregator) *State {
	return &State{
		agg:    agg,
		series: readmodel.Series{TotalSupply: []readmodel.Point{}, RebasePercentage: []readmodel.Point{}},
	}
}

// UpdateChain applies fn to the raw chain values under the write lock.
func (s *State) UpdateChain(fn func(cs *readmodel.ChainState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.chain)
}

// SetHistory replaces the history wholesale and rebuilds both series. When the history
// cannot be aggregated the previous series are kept and the error is recorded.
func (s *State) SetHistory(events []subgraph.RebaseEvent) error {
	series, err := s.agg.BuildSeries(events)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.historyErr = err
		return err
	}
	s.history = events
	s.series = series
	s.historyLoaded = true
	s.historyErr = nil
	return nil
}

// HistoryFailed records an indexer failure; the previous series stay visible.
func (s *State) HistoryFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyErr = err
}

// HistoryLoaded reports whether at least one history fetch has succeeded.
func (s *State) HistoryLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historyLoaded
}

func (s *State) MarkRefreshed(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshedAt = at
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Scalars:     s.agg.Metrics(s.chain),
		Series:      s.series,
		History:     s.history,
		RefreshedAt: s.refreshedAt,
	}
	if snap.History == nil {
		snap.History = []subgraph.RebaseEvent{}
	}
	if s.historyErr != nil {
		snap.HistoryError = s.historyErr.Error()
	}
	return snap
}
