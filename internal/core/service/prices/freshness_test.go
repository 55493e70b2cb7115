package prices

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewaterfall/internal/core/domain"
)

func TestOldestRelevantUpdate_IgnoresSlowPathAssets(t *testing.T) {
	f := newFixture(Config{})
	t08 := time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)
	t10 := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	quotes := []domain.PriceQuote{
		// No curated symbol and no sane hint: fallback cadence only.
		{AssetID: "some-obscure-coin", Symbol: "", UpdatedAt: t08},
		{AssetID: "bitcoin", Symbol: "BTC", UpdatedAt: t10},
		{AssetID: "ethereum", Symbol: "ETH", UpdatedAt: t10.Add(5 * time.Minute)},
	}

	asOf := f.svc.oldestRelevantUpdate(quotes)
	require.NotNil(t, asOf)
	assert.Equal(t, t10, *asOf, "slow-path assets must not drag the as-of timestamp back")
}

func TestOldestRelevantUpdate_FallsBackToAllWhenNoneEligible(t *testing.T) {
	f := newFixture(Config{})
	t08 := time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)

	quotes := []domain.PriceQuote{
		{AssetID: "some-obscure-coin", Symbol: "", UpdatedAt: t08.Add(time.Hour)},
		{AssetID: "another-one", Symbol: "", UpdatedAt: t08},
	}

	asOf := f.svc.oldestRelevantUpdate(quotes)
	require.NotNil(t, asOf)
	assert.Equal(t, t08, *asOf)
}

func TestOldestRelevantUpdate_NilForEmptyListing(t *testing.T) {
	f := newFixture(Config{})
	assert.Nil(t, f.svc.oldestRelevantUpdate(nil))
}
