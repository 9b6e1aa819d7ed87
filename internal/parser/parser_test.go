package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/metrics"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/models"
)

const scenarioA = `🔔 NOVO SINAL
📍 Ativo: EURUSD
⏰ Timeframe: 15Minuto's
📈 Estratégia: RSI – Sobrevendido no nível 30
📊 RSI Atual: 27.16
💡 Tipo de operação: 🟢 COMPRA
💵 Preço de entrada: 7.469`

const scenarioB = `📍 Ativo: UK100FT
⏰ Timeframe: 30Minuto's
📉 Estratégia: RSI – Sobrecomprado no nível 70
📊 RSI Atual: 73.45
💡 Tipo de operação: 🔴 VENDA
💵 Preço de entrada: 8245.50`

func newTestParser() (*Parser, *metrics.Collector) {
	c := metrics.NewCollector()
	return New(logger.Logger(), c), c
}

func TestParseScenarioBuy(t *testing.T) {
	p, c := newTestParser()

	rec, err := p.Parse(scenarioA)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, models.SignalRecord{
		Coin:       "EURUSD",
		Type:       models.OperationLong,
		Entry:      "7.469",
		Strategy:   "RSI – Sobrevendido no nível 30",
		RSIValue:   "27.16",
		Timeframe:  "15Min",
		Status:     "Ativo",
		Confidence: "Alta",
	}, *rec)

	s := c.Snapshot()
	assert.Equal(t, int64(1), s.SignalsParsed)
	assert.Equal(t, int64(0), s.SignalsFailed)
	for _, f := range []string{FieldCoin, FieldType, FieldEntry, FieldStrategy, FieldRSI, FieldTimeframe} {
		assert.Equal(t, int64(1), s.FieldSuccess[f], "field %s", f)
	}
}

func TestParseScenarioSell(t *testing.T) {
	p, _ := newTestParser()

	rec, err := p.Parse(scenarioB)
	require.NoError(t, err)

	assert.Equal(t, "UK100FT", rec.Coin)
	assert.Equal(t, models.OperationShort, rec.Type)
	assert.Equal(t, "8245.50", rec.Entry)
	assert.Equal(t, "73.45", rec.RSIValue)
	assert.Equal(t, "30Min", rec.Timeframe)
	assert.Equal(t, "RSI – Sobrecomprado no nível 70", rec.Strategy)
}

func TestParseMissingEntry(t *testing.T) {
	p, c := newTestParser()

	text := strings.Replace(scenarioA, "💵 Preço de entrada: 7.469", "", 1)
	rec, err := p.Parse(text)
	require.Error(t, err)
	assert.Nil(t, rec)

	var reject *RejectError
	require.True(t, errors.As(err, &reject))
	assert.Equal(t, []string{"entry"}, reject.Missing)
	assert.ErrorIs(t, err, ErrMissingFields)

	s := c.Snapshot()
	assert.Equal(t, int64(1), s.SignalsFailed)
	assert.Equal(t, int64(0), s.SignalsParsed)
	assert.Equal(t, int64(1), s.FieldSuccess[FieldCoin])
	assert.Equal(t, int64(1), s.FieldSuccess[FieldType])
}

func TestParseRequiredFieldGating(t *testing.T) {
	base := map[string]string{
		FieldCoin:  "📍 Ativo: EURUSD",
		FieldType:  "🟢 COMPRA",
		FieldEntry: "Preço de entrada: 1.2345",
	}
	for _, missing := range []string{FieldCoin, FieldType, FieldEntry} {
		t.Run(missing, func(t *testing.T) {
			p, c := newTestParser()

			var lines []string
			for _, f := range []string{FieldCoin, FieldType, FieldEntry} {
				if f != missing {
					lines = append(lines, base[f])
				}
			}
			rec, err := p.Parse(strings.Join(lines, "\n"))
			require.Error(t, err)
			assert.Nil(t, rec)

			var reject *RejectError
			require.ErrorAs(t, err, &reject)
			assert.Equal(t, []string{missing}, reject.Missing)

			s := c.Snapshot()
			assert.Equal(t, int64(1), s.SignalsFailed)
			for _, f := range []string{FieldCoin, FieldType, FieldEntry} {
				if f != missing {
					assert.Equal(t, int64(1), s.FieldSuccess[f], "field %s", f)
				}
			}
		})
	}
}

func TestParseOptionalDefaults(t *testing.T) {
	p, _ := newTestParser()

	rec, err := p.Parse("📍 Ativo: GBPJPY\n🔴 VENDA\nEntry: 190.12")
	require.NoError(t, err)

	assert.Equal(t, models.NotAvailable, rec.Timeframe)
	assert.Equal(t, models.StrategyNotSpecified, rec.Strategy)
	assert.Equal(t, models.NotAvailable, rec.RSIValue)
	assert.Equal(t, models.StatusActive, rec.Status)
	assert.Equal(t, models.ConfidenceHigh, rec.Confidence)
}

func TestParseRSIOutOfRangeIsDropped(t *testing.T) {
	p, _ := newTestParser()

	rec, err := p.Parse("Ativo: EURUSD\nBUY\nEntry: 1.1\nRSI Atual: 120")
	require.NoError(t, err)
	assert.Equal(t, models.NotAvailable, rec.RSIValue)
}

func TestParseRSIZeroIsKept(t *testing.T) {
	p, _ := newTestParser()

	rec, err := p.Parse("Ativo: EURUSD\nBUY\nEntry: 1.1\nRSI: 0")
	require.NoError(t, err)
	assert.Equal(t, "0", rec.RSIValue)
}

func TestParseEntryBelowMinimum(t *testing.T) {
	p, c := newTestParser()

	_, err := p.Parse("Ativo: EURUSD\nBUY\nEntry: 0.000001")
	var reject *RejectError
	require.ErrorAs(t, err, &reject)
	assert.Equal(t, []string{"entry"}, reject.Missing)
	assert.Equal(t, int64(1), c.Snapshot().SignalsFailed)
}

func TestParseEntryUnparsable(t *testing.T) {
	p, _ := newTestParser()

	_, err := p.Parse("Ativo: EURUSD\nBUY\nEntry: 1.2.3")
	var reject *RejectError
	require.ErrorAs(t, err, &reject)
	assert.Equal(t, []string{"entry"}, reject.Missing)
}

func TestParseEntryRoundTrip(t *testing.T) {
	p, _ := newTestParser()

	for _, raw := range []string{"7.469", "8245.50", "0.00001", "100", "1.000001", "007.5"} {
		rec, err := p.Parse("Ativo: EURUSD\nLONG\nPrice: " + raw)
		require.NoError(t, err, raw)

		got, err := decimal.NewFromString(rec.Entry)
		require.NoError(t, err)
		want := decimal.RequireFromString(raw)
		assert.True(t, got.Equal(want), "entry %q became %q", raw, rec.Entry)
	}
}

func TestParseRecoversPanic(t *testing.T) {
	p, c := newTestParser()

	extractFieldsFunc = func(*Parser, string) models.ParsedFields { panic("boom") }
	t.Cleanup(func() { extractFieldsFunc = (*Parser).ExtractFields })

	rec, err := p.Parse(scenarioA)
	assert.Nil(t, rec)

	var reject *RejectError
	require.ErrorAs(t, err, &reject)
	require.Error(t, reject.Cause)
	assert.Contains(t, reject.Cause.Error(), "boom")
	assert.Equal(t, int64(1), c.Snapshot().SignalsFailed)
}

func TestExtractorPriority(t *testing.T) {
	cases := []struct {
		field    string
		patterns int
		text     string
		want     string
	}{
		{FieldCoin, len(coinPatterns), "Ativo: EURUSD\nPar: GBPJPY", "EURUSD"},
		{FieldTimeframe, len(timeframePatterns), "Timeframe: H1\nTF: M5", "H1"},
		{FieldStrategy, len(strategyPatterns), "Estratégia: Rompimento\nStrategy: Breakout", "Rompimento"},
		{FieldRSI, len(rsiPatterns), "RSI Atual: 40\nRSI: 50", "40"},
		{FieldEntry, len(entryPatterns), "Preço de entrada: 1.5\nEntry: 2.5", "1.5"},
	}

	p, _ := newTestParser()
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			require.GreaterOrEqual(t, tc.patterns, 2)
			got, ok := p.Extract(tc.text, patternsFor(tc.field), tc.field, true)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func patternsFor(field string) []*regexp.Regexp {
	switch field {
	case FieldCoin:
		return coinPatterns
	case FieldTimeframe:
		return timeframePatterns
	case FieldStrategy:
		return strategyPatterns
	case FieldRSI:
		return rsiPatterns
	default:
		return entryPatterns
	}
}

func TestExtractNotFound(t *testing.T) {
	p, c := newTestParser()

	_, ok := p.Extract("nothing here", coinPatterns, FieldCoin, false)
	assert.False(t, ok)
	_, ok = p.Extract("nothing here", strategyPatterns, FieldStrategy, true)
	assert.False(t, ok)
	assert.Empty(t, c.Snapshot().FieldSuccess)
}

func TestExtractFallbackPatterns(t *testing.T) {
	p, _ := newTestParser()

	cases := []struct {
		name     string
		text     string
		patterns []*regexp.Regexp
		field    string
		want     string
	}{
		{"coin rest of line", "Ativo: UK100FT", coinPatterns, FieldCoin, "UK100FT"},
		{"coin par", "Par: XAUUSD", coinPatterns, FieldCoin, "XAUUSD"},
		{"timeframe tf", "TF: 5Min", timeframePatterns, FieldTimeframe, "5Min"},
		{"timeframe minuto", "Expiração de 5 Minutos", timeframePatterns, FieldTimeframe, "5"},
		{"timeframe bare M", "Gráfico M15 aberto", timeframePatterns, FieldTimeframe, "15"},
		{"strategy indicador", "Indicador: MACD cruzado", strategyPatterns, FieldStrategy, "MACD cruzado"},
		{"strategy bare rsi", "Sinal RSI - sobrecompra", strategyPatterns, FieldStrategy, "RSI - sobrecompra"},
		{"rsi bare atual", "Sobrevendido (Atual: 22.5)", rsiPatterns, FieldRSI, "22.5"},
		{"entry entrada", "Entrada: 1.0845", entryPatterns, FieldEntry, "1.0845"},
		{"entry price", "Price: 64000", entryPatterns, FieldEntry, "64000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := p.Extract(tc.text, tc.patterns, tc.field, true)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeTimeframe(t *testing.T) {
	cases := map[string]string{
		"15Minuto's": "15Min",
		"30 Minutos": "30 Min",
		"5minuto":    "5Min",
		"M5":         "5",
		"H1":         "H1",
		"Mensal":     "Mensal",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeTimeframe(in), in)
	}
}

func TestStrategyEmojiPrefixConsumesSpacing(t *testing.T) {
	for _, text := range []string{"📈  Estratégia: RSI", "📉 Estratégia: RSI", "📈 Strategy: RSI"} {
		loc := strategyPatterns[0].FindStringIndex(text)
		if strings.Contains(text, "Strategy") {
			loc = strategyPatterns[1].FindStringIndex(text)
		}
		require.NotNil(t, loc, text)
		assert.Equal(t, 0, loc[0], "emoji prefix should be part of the match for %q", text)
	}
}

func TestBareMinuteTimeframeIsCaseSensitiveAndBounded(t *testing.T) {
	bare := timeframePatterns[len(timeframePatterns)-1]

	assert.Equal(t, []string{"M15", "15"}, bare.FindStringSubmatch("Gráfico M15 aberto"))
	assert.Nil(t, bare.FindStringSubmatch("Gráfico m15 aberto"))
	assert.Nil(t, bare.FindStringSubmatch("XM15"))
	assert.Nil(t, bare.FindStringSubmatch("M15x"))
}

func TestDetectType(t *testing.T) {
	p, c := newTestParser()

	cases := []struct {
		text string
		want models.OperationType
		ok   bool
	}{
		{"🟢 COMPRA agora", models.OperationLong, true},
		{"entrar em compra", models.OperationLong, true},
		{"go long", models.OperationLong, true},
		{"CALL 5m", models.OperationLong, true},
		{"🔴 VENDA", models.OperationShort, true},
		{"sell now", models.OperationShort, true},
		{"PUT", models.OperationShort, true},
		{"BUY or SELL", models.OperationLong, true},
		{"sobrecomprado", "", false},
		{"nothing", "", false},
	}
	detected := int64(0)
	for _, tc := range cases {
		got, ok := p.DetectType(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.want, got, tc.text)
		if ok {
			detected++
		}
	}
	assert.Equal(t, detected, c.Snapshot().FieldSuccess[FieldType])
}

func TestValidateNumeric(t *testing.T) {
	p, _ := newTestParser()

	_, ok := p.ValidateNumeric("abc", "rsiValue", &minRSI, &maxRSI)
	assert.False(t, ok)
	_, ok = p.ValidateNumeric("100.01", "rsiValue", &minRSI, &maxRSI)
	assert.False(t, ok)
	v, ok := p.ValidateNumeric("100", "rsiValue", &minRSI, &maxRSI)
	assert.True(t, ok)
	assert.Equal(t, "100", FormatDecimal(v))
	v, ok = p.ValidateNumeric("0.00001", "entry", &minEntry, nil)
	assert.True(t, ok)
	assert.Equal(t, "0.00001", FormatDecimal(v))
	v, ok = p.ValidateNumeric("99999999", "entry", nil, nil)
	assert.True(t, ok)
	assert.Equal(t, "99999999", FormatDecimal(v))
}

func TestRejectErrorMessage(t *testing.T) {
	err := &RejectError{Missing: []string{"coin", "entry"}}
	assert.Equal(t, "signal rejected: missing required fields: coin, entry", err.Error())

	cause := fmt.Errorf("panic: boom")
	err = &RejectError{Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrMissingFields)
}
