package parser

import (
	"regexp"
	"strings"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
)

// Extract tries patterns in order against text and returns the trimmed first
// capture group of the first pattern that matches. Optional fields that are
// not found are logged at warn level, required ones at error level.
func (p *Parser) Extract(text string, patterns []*regexp.Regexp, field string, optional bool) (string, bool) {
	for i, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		value := strings.TrimSpace(m[1])
		if value == "" {
			continue
		}
		p.metrics.FieldExtracted(field)
		p.log.WithFields(logger.Fields{"field": field, "pattern": i + 1}).Debug("field extracted")
		return value, true
	}

	log := p.log.WithFields(logger.Fields{"field": field, "patterns_tried": len(patterns)})
	if optional {
		log.Warn("optional field not found")
	} else {
		log.Error("required field not found")
	}
	return "", false
}

// normalizeTimeframe rewrites "15Minuto's" style values to "15Min" and drops
// a leading "M" from values such as "M5".
func normalizeTimeframe(raw string) string {
	tf := minutoSuffix.ReplaceAllString(raw, "Min")
	tf = leadingMinute.ReplaceAllString(tf, "${1}")
	return strings.TrimSpace(tf)
}
