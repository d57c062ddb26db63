// Package readmodel derives the dashboard's time series and scalar metrics from raw
// indexer history and chain reads.
package readmodel

import (
	"errors"
	"fmt"
	"time"

	"github.com/debaseonomics/debasex/pkg/subgraph"
	"github.com/debaseonomics/debasex/pkg/units"
	"github.com/shopspring/decimal"
)

const (
	// DefaultGenesisSupply is the display supply before the first rebase.
	DefaultGenesisSupply = 1_000_000
	// DefaultDistributionOffset is added to the on-chain reward counters before display.
	// Its provenance is not documented on chain; it is carried as configuration.
	DefaultDistributionOffset = 70_000

	// AnchorOffset dates the synthetic epoch-0 point before the first real rebase.
	AnchorOffset = 24 * time.Hour

	// DateLayout formats chart x values.
	DateLayout = "1/2/2006"
)

var (
	// ErrUnorderedHistory is returned when epochs or timestamps are not strictly descending as fetched.
	ErrUnorderedHistory = errors.New("rebase history is not strictly ordered")
	// ErrNonPositiveSupply is returned when a percentage would divide by a non-positive supply.
	ErrNonPositiveSupply = errors.New("cumulative supply is not positive")
)

var hundred = decimal.NewFromInt(100)

// percentagePlaces keeps sub-wei adjustments on a million-token supply representable.
const percentagePlaces = 40

// Point is one chart sample.
type Point struct {
	Epoch uint64  `json:"epoch"`
	Date  string  `json:"x"`
	Value float64 `json:"y"`
	// Exact is the unrounded value; percentages are rounded to 40 decimal places.
	Exact     decimal.Decimal `json:"exact"`
	Timestamp int64           `json:"timestamp"`
}

// Series holds the two derived chart series, both in chronological order.
type Series struct {
	TotalSupply      []Point `json:"totalSupply"`
	RebasePercentage []Point `json:"rebasePercentage"`
}

// Empty reports whether there is nothing to chart.
func (s Series) Empty() bool {
	return len(s.TotalSupply) == 0 && len(s.RebasePercentage) == 0
}

// Aggregator turns raw history and chain values into display units.
type Aggregator struct {
	GenesisSupply      decimal.Decimal
	DistributionOffset decimal.Decimal
	// Location is used for chart dates; nil means UTC.
	Location *time.Location
	// Now is the clock used for time-remaining metrics; nil means time.Now.
	Now func() time.Time
}

// New returns an Aggregator with the given genesis supply and distribution offset.
func New(genesisSupply, distributionOffset decimal.Decimal) *Aggregator {
	return &Aggregator{
		GenesisSupply:      genesisSupply,
		DistributionOffset: distributionOffset,
	}
}

// NewDefault uses DefaultGenesisSupply and DefaultDistributionOffset.
func NewDefault() *Aggregator {
	return New(decimal.NewFromInt(DefaultGenesisSupply), decimal.NewFromInt(DefaultDistributionOffset))
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// FormatDate renders a unix timestamp the way chart x values are shown.
func (a *Aggregator) FormatDate(ts int64) string {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(ts, 0).In(loc).Format(DateLayout)
}

// Chronological reverses the descending history and prepends the synthetic zero-adjustment
// anchor dated AnchorOffset before the earliest event. An empty history stays empty.
func Chronological(events []subgraph.RebaseEvent) ([]subgraph.RebaseEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	out := make([]subgraph.RebaseEvent, 0, len(events)+1)
	out = append(out, subgraph.RebaseEvent{})
	for i := len(events) - 1; i >= 0; i-- {
		out = append(out, events[i])
	}

	for i := 2; i < len(out); i++ {
		if out[i].Epoch <= out[i-1].Epoch || out[i].Timestamp <= out[i-1].Timestamp {
			return nil, fmt.Errorf("%w: epoch %d after epoch %d", ErrUnorderedHistory, out[i].Epoch, out[i-1].Epoch)
		}
	}

	out[0] = subgraph.RebaseEvent{
		Epoch:            0,
		ExchangeRate:     decimal.Zero,
		SupplyAdjustment: nil,
		RebaseLag:        0,
		Timestamp:        out[1].Timestamp - int64(AnchorOffset/time.Second),
	}
	return out, nil
}

// CumulativeSupplyThrough is genesis plus the display value of every adjustment in
// ordered[0..i]. It recomputes from scratch; BuildSeries uses a running sum instead.
func (a *Aggregator) CumulativeSupplyThrough(ordered []subgraph.RebaseEvent, i int) decimal.Decimal {
	total := a.GenesisSupply
	for j := 0; j <= i && j < len(ordered); j++ {
		total = total.Add(units.ToDisplay(ordered[j].SupplyAdjustment))
	}
	return total
}

// BuildSeries derives the total-supply series (one point per event plus the anchor) and the
// rebase-percentage series (one point per real event) from history ordered by epoch descending.
func (a *Aggregator) BuildSeries(events []subgraph.RebaseEvent) (Series, error) {
	ordered, err := Chronological(events)
	if err != nil {
		return Series{}, err
	}
	if len(ordered) == 0 {
		return Series{TotalSupply: []Point{}, RebasePercentage: []Point{}}, nil
	}

	series := Series{
		TotalSupply:      make([]Point, 0, len(ordered)),
		RebasePercentage: make([]Point, 0, len(ordered)-1),
	}

	running := a.GenesisSupply
	for i, ev := range ordered {
		adjustment := units.ToDisplay(ev.SupplyAdjustment)
		previous := running
		running = running.Add(adjustment)

		date := a.FormatDate(ev.Timestamp)
		series.TotalSupply = append(series.TotalSupply, newPoint(ev, date, running))

		if i == 0 {
			continue
		}
		if previous.Sign() <= 0 {
			return Series{}, fmt.Errorf("%w: %s before epoch %d", ErrNonPositiveSupply, previous.String(), ev.Epoch)
		}
		pct := adjustment.Mul(hundred).DivRound(previous, percentagePlaces)
		series.RebasePercentage = append(series.RebasePercentage, newPoint(ev, date, pct))
	}
	return series, nil
}

func newPoint(ev subgraph.RebaseEvent, date string, v decimal.Decimal) Point {
	f, _ := v.Float64()
	return Point{
		Epoch:     ev.Epoch,
		Date:      date,
		Value:     f,
		Exact:     v,
		Timestamp: ev.Timestamp,
	}
}
