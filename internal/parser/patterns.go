package parser

import "regexp"

// Field names used for logging and per-field counters. They match the JSON
// field names of models.SignalRecord.
const (
	FieldCoin      = "coin"
	FieldType      = "type"
	FieldEntry     = "entry"
	FieldStrategy  = "strategy"
	FieldRSI       = "rsiValue"
	FieldTimeframe = "timeframe"
)

// restOfLine captures everything up to the next line break, lazily.
const restOfLine = `\s*([^\n\r]+?)(?:\n|\r|$)`

// Pattern lists are ordered from most to least specific. The first match
// wins, so the relative order is significant.
var (
	coinPatterns = compileAll(
		`(?i)(?:📍\s*)?Ativo:\s*([A-Z]{3,10}(?:USD|EUR|GBP|JPY|CAD|AUD|CHF|NZD)?)`,
		`(?i)(?:📍\s*)?Ativo:`+restOfLine,
		`(?i)(?:📍\s*)?Ativo\s*[:-]\s*([A-Z]{3,10})`,
		`(?i)Par:\s*([A-Z]{3,10})`,
	)

	timeframePatterns = compileAll(
		`(?i)(?:⏰\s*)?Timeframe:`+restOfLine,
		`(?i)(?:⏰\s*)?TF:`+restOfLine,
		`(?i)(?:⏰\s*)?Tempo:`+restOfLine,
		`(?i)(\d+)\s*Minuto`,
		`\bM(\d+)\b`,
	)

	strategyPatterns = compileAll(
		`(?i)(?:[📈📉]\s*)?Estratégia:`+restOfLine,
		`(?i)(?:[📈📉]\s*)?Strategy:`+restOfLine,
		`(?i)Indicador:`+restOfLine,
		`(?i)(RSI\s*[–-]\s*[^\n\r]+?)(?:\n|\r|$)`,
	)

	rsiPatterns = compileAll(
		`(?i)RSI\s+Atual:\s*([0-9.]+)`,
		`(?i)RSI:\s*([0-9.]+)`,
		`(?i)\(\s*RSI\s+Atual:\s*([0-9.]+)\s*\)`,
		`(?i)Atual:\s*([0-9.]+)`,
	)

	entryPatterns = compileAll(
		`(?i)(?:💵\s*)?Preço\s+de\s+entrada:\s*([0-9.]+)`,
		`(?i)(?:💵\s*)?Preço:\s*([0-9.]+)`,
		`(?i)(?:💵\s*)?Entry:\s*([0-9.]+)`,
		`(?i)(?:💵\s*)?Entrada:\s*([0-9.]+)`,
		`(?i)Price:\s*([0-9.]+)`,
	)

	// Operation patterns run against upper-cased text.
	buyPatterns = compileAll(
		`🟢\s*COMPRA`,
		`\bCOMPRA\b`,
		`\bBUY\b`,
		`\bLONG\b`,
		`\bCALL\b`,
	)
	sellPatterns = compileAll(
		`🔴\s*VENDA`,
		`\bVENDA\b`,
		`\bSELL\b`,
		`\bSHORT\b`,
		`\bPUT\b`,
	)

	// Indicators for the candidate gate, tested against the raw text.
	indicatorPatterns = compileAll(
		`(?i)(?:📍\s*)?Ativo:`,
		`(?i)(?:💡\s*)?Tipo\s+de\s+operação:`,
		`(?i)(?:💵\s*)?Preço\s+de\s+entrada:`,
		`(?i)COMPRA|VENDA`,
		`(?i)BUY|SELL`,
		`(?i)LONG|SHORT`,
		`(?i)Entry|Entrada`,
	)

	minutoSuffix  = regexp.MustCompile(`(?i)Minuto'?s?`)
	leadingMinute = regexp.MustCompile(`^M(\d)`)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(expr)
	}
	return out
}
