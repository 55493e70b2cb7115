package symbols

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestResolve_CuratedWinsOverHint(t *testing.T) {
	r := NewResolver(nil)

	hints := []string{"", "WBTC", "btc/usdt", "  xbt  "}
	for _, hint := range hints {
		assert.Equal(t, "BTC", r.Resolve("bitcoin", hint), "hint %q", hint)
	}

	// Normalization of the asset id happens before the curated lookup.
	assert.Equal(t, "AVAX", r.Resolve("  Avalanche-2  ", "anything"))
}

func TestResolve_ConfiguredOverridesExtendCurated(t *testing.T) {
	r := NewResolver(map[string]string{"My-Token": " mtk "})

	assert.Equal(t, "MTK", r.Resolve("my-token", "OTHER"))
	assert.Equal(t, "ETH", r.Resolve("ethereum", ""), "curated entries survive")
}

func TestResolve_SanitizesHintForUnknownAssets(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		assetID string
		hint    string
		want    string
	}{
		{"obscure-coin", "  1inch  ", "1INCH"},
		{"obscure-coin", "eth/usdt", ""},
		{"obscure-coin", "", ""},
		{"obscure-coin", "BTC-USDT", ""},
		{"", "sol", "SOL"},
		{"", "   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Resolve(tt.assetID, tt.hint), "resolve(%q, %q)", tt.assetID, tt.hint)
	}
}

func TestSanitizeSymbol_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("alphanumeric hints round-trip uppercased", prop.ForAll(
		func(s string) bool {
			return SanitizeSymbol("  "+s+"  ") == s
		},
		gen.RegexMatch(`^[A-Z0-9]{1,12}$`),
	))

	properties.Property("hints containing separators are rejected", prop.ForAll(
		func(base string, sep string) bool {
			return SanitizeSymbol(base+sep+base) == ""
		},
		gen.RegexMatch(`^[A-Z0-9]{1,6}$`),
		gen.OneConstOf("/", "-", "_", ".", " "),
	))

	properties.TestingRun(t)
}
