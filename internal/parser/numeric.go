package parser

import (
	"github.com/shopspring/decimal"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
)

var (
	minEntry = decimal.RequireFromString("0.00001")
	minRSI   = decimal.Zero
	maxRSI   = decimal.NewFromInt(100)
)

// ValidateNumeric parses raw as a decimal and checks it against the
// optional inclusive bounds. Out-of-range values are rejected, never clamped.
func (p *Parser) ValidateNumeric(raw, field string, min, max *decimal.Decimal) (decimal.Decimal, bool) {
	log := p.log.WithFields(logger.Fields{"field": field, "raw": raw})

	value, err := decimal.NewFromString(raw)
	if err != nil {
		log.WithError(err).Warn("value is not a valid number")
		return decimal.Decimal{}, false
	}
	if min != nil && value.LessThan(*min) {
		log.WithFields(logger.Fields{"min": min.String()}).Warn("value is below the minimum")
		return decimal.Decimal{}, false
	}
	if max != nil && value.GreaterThan(*max) {
		log.WithFields(logger.Fields{"max": max.String()}).Warn("value is above the maximum")
		return decimal.Decimal{}, false
	}
	return value, true
}

// FormatDecimal renders d keeping the scale it was parsed with, so "8245.50"
// stays "8245.50" and parsing the output yields an equal value.
func FormatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
