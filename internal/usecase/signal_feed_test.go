package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ZigmaPulse/internal/domain/models"
	drepo "ZigmaPulse/internal/domain/repository"
)

func TestFeedLatest(t *testing.T) {
	f := newFeed(&fakeSource{name: "agent", text: cycleTwo})
	s, err := f.Latest(context.Background(), "", drepo.VariantLatest)
	require.NoError(t, err)
	assert.Equal(t, "BUY NO", s.Action)
	assert.Equal(t, "sol-300", s.MarketID)
	assert.Equal(t, "2025-01-01T00:01:00Z", s.Timestamp)
	assert.Equal(t, models.NotAvailable, s.Liquidity)
}

func TestFeedLatestEmpty(t *testing.T) {
	f := newFeed(&fakeSource{name: "agent", text: "  \n"}, &fakeSource{name: "quiet", text: "just noise"})
	_, err := f.Latest(context.Background(), "agent", drepo.VariantLatest)
	assert.ErrorIs(t, err, ErrNoLogs)
	_, err = f.Latest(context.Background(), "quiet", drepo.VariantLatest)
	assert.ErrorIs(t, err, ErrNoSignal)
}

func TestFeedSourceErrors(t *testing.T) {
	f := newFeed(&fakeSource{name: "agent", err: errDown})
	_, err := f.Recent(context.Background(), "missing", 5, drepo.VariantFeed)
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = f.Recent(context.Background(), "agent", 5, drepo.VariantFeed)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "agent", fe.Source)
	assert.ErrorIs(t, err, errDown)

	_, err = newFeed().Latest(context.Background(), "", drepo.VariantLatest)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestFeedRecentWindow(t *testing.T) {
	f := newFeed(&fakeSource{name: "agent", text: cycleTwo})
	page, err := f.Recent(context.Background(), "agent", 2, drepo.VariantFeed)
	require.NoError(t, err)
	require.Len(t, page.Signals, 2)
	assert.Equal(t, "NO_TRADE", page.Signals[0].Action)
	assert.Equal(t, "BUY NO", page.Signals[1].Action)
	assert.Equal(t, 2, page.Stats.Signals)
	assert.Equal(t, 1, page.Stats.Actions["BUY NO"])

	page, err = f.Recent(context.Background(), "agent", 0, drepo.VariantFeed)
	require.NoError(t, err)
	assert.Len(t, page.Signals, 3, "window 5 holds all three")
}

func TestFeedMarkets(t *testing.T) {
	f := newFeed(&fakeSource{name: "agent", text: cycleOne})
	page, err := f.Markets(context.Background(), "agent", 10)
	require.NoError(t, err)
	require.Len(t, page.Markets, 1)
	assert.InDelta(t, 7.0, page.Markets[0].Edge, 1e-9)
	assert.InDelta(t, 7.0, page.Stats.MaxEdge, 1e-9)
}

func TestFeedParseTextVariants(t *testing.T) {
	f := newFeed()
	text := "📊 SIGNAL: BUY YES (70%) | Exposure: 2%"
	res := f.ParseText(context.Background(), text, 0, drepo.VariantLogs)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, "", res.Signals[0].Market)

	res = f.ParseText(context.Background(), text, 0, drepo.VariantFeed)
	assert.Equal(t, models.UnknownMarket, res.Signals[0].Market)
}

func TestOverview(t *testing.T) {
	f := newFeed(
		&fakeSource{name: "a", text: cycleOne},
		&fakeSource{name: "b", err: errDown},
		&fakeSource{name: "c", text: cycleTwo},
	)
	ov, err := NewOverviewUseCase(f, time.Second).Get(context.Background())
	require.NoError(t, err)
	require.Len(t, ov.Sources, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{ov.Sources[0].Source, ov.Sources[1].Source, ov.Sources[2].Source})

	assert.Equal(t, "NO_TRADE", ov.Sources[0].Latest.Action)
	assert.Nil(t, ov.Sources[1].Latest)
	assert.Equal(t, "2025-01-01T00:01:00Z", ov.Sources[2].LastCycle)
	assert.Equal(t, 3, ov.Sources[2].Stats.Signals)
	require.Contains(t, ov.Errors, "b")
	assert.Contains(t, ov.Errors["b"], "agent down")
}

func TestOverviewAllHealthy(t *testing.T) {
	f := newFeed(&fakeSource{name: "a", text: cycleOne})
	ov, err := NewOverviewUseCase(f, 0).Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ov.Errors)
}

func TestHistoryUseCase(t *testing.T) {
	_, err := NewHistoryUseCase(nil).Signals(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	h := &fakeHistory{}
	require.NoError(t, h.SaveParse(context.Background(), "agent", models.ParseResult{
		Signals: []models.Signal{*models.NewSignal("Q", "m1", "BUY YES", "1", "1", "T")},
	}))
	recs, err := NewHistoryUseCase(h).Signals(context.Background(), "m1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "agent", recs[0].Source)
}
