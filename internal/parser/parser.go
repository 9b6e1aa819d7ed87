// Package parser turns free-form channel posts into normalized signal
// records.
package parser

import (
	"fmt"
	"time"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/metrics"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/pipeline/normalizer"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/models"
)

// extractFieldsFunc is swapped in tests to exercise panic recovery.
var extractFieldsFunc = (*Parser).ExtractFields

// Parser extracts signal records and reports into a metrics collector. It
// holds no per-message state and is safe for concurrent use.
type Parser struct {
	log     *logger.Entry
	metrics *metrics.Collector
}

// New returns a parser. A nil collector gets a private one.
func New(log *logger.Log, collector *metrics.Collector) *Parser {
	if log == nil {
		log = logger.GetLogger()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Parser{
		log:     log.WithComponent("parser"),
		metrics: collector,
	}
}

// Parse normalizes text, runs every extractor and assembles a SignalRecord.
// A message missing coin, type or entry yields a *RejectError and counts as
// a failed signal. Panics are recovered and reported the same way.
func (p *Parser) Parse(text string) (rec *models.SignalRecord, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.metrics.SignalFailed()
			p.log.WithFields(logger.Fields{"panic": fmt.Sprint(r)}).Error("recovered panic while parsing signal")
			rec = nil
			err = &RejectError{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	fields := extractFieldsFunc(p, normalizer.Normalize(text))

	if missing := fields.Missing(); len(missing) > 0 {
		p.metrics.SignalFailed()
		p.log.WithFields(logger.Fields{"missing": missing}).Warn("signal rejected: required fields missing")
		return nil, &RejectError{Missing: missing}
	}

	rec = buildRecord(fields)
	p.metrics.SignalParsed()
	logger.LogPerformanceEntry(p.log, "parser", "parse", time.Since(start), logger.Fields{"coin": rec.Coin})
	p.log.WithFields(logger.Fields{
		"coin":      rec.Coin,
		"type":      rec.Type,
		"entry":     rec.Entry,
		"timeframe": rec.Timeframe,
	}).Info("signal parsed")
	return rec, nil
}

// ExtractFields runs every extractor and the type detector against already
// normalized text. Extractors never short-circuit each other.
func (p *Parser) ExtractFields(text string) models.ParsedFields {
	var fields models.ParsedFields

	if coin, ok := p.Extract(text, coinPatterns, FieldCoin, false); ok {
		fields.Coin = coin
	}

	if tf, ok := p.Extract(text, timeframePatterns, FieldTimeframe, true); ok {
		if tf = normalizeTimeframe(tf); tf != "" {
			fields.Timeframe = &tf
		}
	}

	if strategy, ok := p.Extract(text, strategyPatterns, FieldStrategy, true); ok {
		fields.Strategy = &strategy
	}

	if raw, ok := p.Extract(text, rsiPatterns, FieldRSI, true); ok {
		if v, ok := p.ValidateNumeric(raw, FieldRSI, &minRSI, &maxRSI); ok {
			s := FormatDecimal(v)
			fields.RSIValue = &s
		}
	}

	if op, ok := p.DetectType(text); ok {
		fields.Type = op
	}

	if raw, ok := p.Extract(text, entryPatterns, FieldEntry, false); ok {
		if v, ok := p.ValidateNumeric(raw, FieldEntry, &minEntry, nil); ok {
			fields.Entry = FormatDecimal(v)
		}
	}

	return fields
}

func buildRecord(f models.ParsedFields) *models.SignalRecord {
	rec := &models.SignalRecord{
		Coin:       f.Coin,
		Type:       f.Type,
		Entry:      f.Entry,
		Strategy:   models.StrategyNotSpecified,
		RSIValue:   models.NotAvailable,
		Timeframe:  models.NotAvailable,
		Status:     models.StatusActive,
		Confidence: models.ConfidenceHigh,
	}
	if f.Strategy != nil {
		rec.Strategy = *f.Strategy
	}
	if f.RSIValue != nil {
		rec.RSIValue = *f.RSIValue
	}
	if f.Timeframe != nil {
		rec.Timeframe = *f.Timeframe
	}
	return rec
}
