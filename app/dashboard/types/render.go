package types

import (
	"time"

	"github.com/debaseonomics/debasex/pkg/readmodel"
)

// Metric identifiers.
const (
	MetricRewardDistributed    = "rewardDistributed"
	MetricRequiredDistribution = "requiredDistribution"
	MetricMaximumRebaseTime    = "maximumRebaseTime"
	MetricCurrentPrice         = "currentPrice"
)

// Chart identifiers.
const (
	ChartTotalSupply      = "totalSupply"
	ChartRebasePercentage = "rebasePercentage"
)

// Line is one rendered scalar metric.
type Line struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Value   any    `json:"value"`
	Pending bool   `json:"pending"`
}

// Chart is a rendered time series. Only non-empty series are rendered.
type Chart struct {
	ID     string            `json:"id"`
	Title  string            `json:"title"`
	Points []readmodel.Point `json:"points"`
}

// Button is the state of the rebase trigger.
type Button struct {
	Label   string `json:"label"`
	Loading bool   `json:"loading"`
	Enabled bool   `json:"enabled"`
}

// View is the complete rendered dashboard.
type View struct {
	Lines         []Line         `json:"lines"`
	Charts        []Chart        `json:"charts"`
	Button        Button         `json:"button"`
	Notifications []Notification `json:"notifications"`
	RefreshedAt   time.Time      `json:"refreshedAt"`
}

// RenderLines renders the scalar metrics, substituting the placeholder for pending ones.
func RenderLines(s readmodel.Scalars, now time.Time) []Line {
	lines := []Line{
		{
			ID:      MetricRewardDistributed,
			Text:    "Debase Distributed: " + readmodel.FormatDistributed(s.RewardDistributed),
			Pending: s.RewardDistributed == nil,
		},
		{
			ID:      MetricRequiredDistribution,
			Text:    "Required Distribution to Rebase: " + readmodel.FormatRequired(s.RequiredDistribution),
			Pending: s.RequiredDistribution == nil,
		},
		{
			ID:      MetricMaximumRebaseTime,
			Text:    "Maximum time to rebase " + readmodel.FormatRelative(s.MaximumRebaseTime, now),
			Pending: s.MaximumRebaseTime == nil,
		},
		{
			ID:      MetricCurrentPrice,
			Text:    "Current Price " + readmodel.FormatPrice(s.CurrentPrice),
			Pending: s.CurrentPrice == nil,
		},
	}
	if s.RewardDistributed != nil {
		lines[0].Value = s.RewardDistributed
	}
	if s.RequiredDistribution != nil {
		lines[1].Value = s.RequiredDistribution
	}
	if s.MaximumRebaseTime != nil {
		lines[2].Value = s.MaximumRebaseTime.Unix()
	}
	if s.CurrentPrice != nil {
		lines[3].Value = s.CurrentPrice
	}
	return lines
}

// RenderCharts returns a chart per non-empty series.
func RenderCharts(series readmodel.Series) []Chart {
	charts := []Chart{}
	if len(series.TotalSupply) > 0 {
		charts = append(charts, Chart{ID: ChartTotalSupply, Title: "Total Supply", Points: series.TotalSupply})
	}
	if len(series.RebasePercentage) > 0 {
		charts = append(charts, Chart{ID: ChartRebasePercentage, Title: "Rebase Percentage", Points: series.RebasePercentage})
	}
	return charts
}

// Render builds the full view from a snapshot and the rebase action state.
func Render(snap Snapshot, now time.Time, loading, canSign bool, notifications []Notification) View {
	if notifications == nil {
		notifications = []Notification{}
	}
	return View{
		Lines:  RenderLines(snap.Scalars, now),
		Charts: RenderCharts(snap.Series),
		Button: Button{
			Label:   "Rebase",
			Loading: loading,
			Enabled: canSign && !loading,
		},
		Notifications: notifications,
		RefreshedAt:   snap.RefreshedAt,
	}
}
