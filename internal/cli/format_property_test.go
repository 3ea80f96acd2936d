package cli

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// parseMoney reverses FormatMoney.
func parseMoney(s string) float64 {
	s = strings.Replace(s, "$", "", 1)
	s = strings.ReplaceAll(s, ",", "")
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// For any amount, FormatMoney keeps the sign, shows exactly two decimals,
// groups by thousands and preserves the value to the cent.
func TestProperty_MoneyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	grouped := regexp.MustCompile(`^\d{1,3}(,\d{3})*$`)

	properties.Property("FormatMoney produces a grouped dollar amount", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatMoney(amount)
			rounded := math.Round(amount*100) / 100

			body := formatted
			if rounded < 0 {
				if !strings.HasPrefix(formatted, "-$") {
					t.Logf("expected -$ prefix for %f, got %s", amount, formatted)
					return false
				}
				body = strings.TrimPrefix(formatted, "-")
			}
			if !strings.HasPrefix(body, "$") {
				t.Logf("expected $ prefix for %f, got %s", amount, formatted)
				return false
			}

			parts := strings.Split(strings.TrimPrefix(body, "$"), ".")
			if len(parts) != 2 || len(parts[1]) != 2 {
				t.Logf("expected 2 decimals for %f, got %s", amount, formatted)
				return false
			}
			if !grouped.MatchString(parts[0]) {
				t.Logf("bad grouping for %f: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("FormatMoney preserves value", prop.ForAll(
		func(amount float64) bool {
			parsed := parseMoney(FormatMoney(amount))
			return math.Abs(parsed-math.Round(amount*100)/100) < 0.011
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("FormatQuantity never shows a trailing .0", prop.ForAll(
		func(qty float64) bool {
			return !strings.HasSuffix(FormatQuantity(qty), ".0")
		},
		gen.Float64Range(-1e7, 1e7),
	))

	properties.Property("FormatQuantity of whole numbers has no fraction", prop.ForAll(
		func(n int64) bool {
			return !strings.Contains(FormatQuantity(float64(n)), ".")
		},
		gen.Int64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "$1,234,567.89", FormatMoney(1234567.891))
	assert.Equal(t, "-$12.50", FormatMoney(-12.5))
	assert.Equal(t, "$0.00", FormatMoney(0))
	assert.Equal(t, "-", FormatMoney(math.NaN()))

	assert.Equal(t, "1,200", FormatQuantity(1200))
	assert.Equal(t, "12.5", FormatQuantity(12.46))
	assert.Equal(t, "-3", FormatQuantity(-3))

	assert.Equal(t, "95.0%", FormatPercent(0.95))
	assert.Equal(t, "82%", FormatConfidence(0.82))
	assert.Equal(t, "∞", FormatDays(math.Inf(1)))
	assert.Equal(t, "7.5d", FormatDays(7.5))

	assert.Equal(t, "250ms", FormatElapsed(250))
	assert.Equal(t, "2.5s", FormatElapsed(2500))
	assert.Equal(t, "2m 5s", FormatElapsed(125000))

	assert.Equal(t, "-", FormatDate(time.Time{}))
	assert.Equal(t, "2024-03-31", FormatDate(time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)))

	assert.Equal(t, "abcdefg", TruncateString("abcdefg", 7))
	assert.Equal(t, "abc...", TruncateString("abcdefgh", 6))
}
