package parser

import (
	"strings"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/pipeline/normalizer"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/models"
)

// DetectType infers the trade direction. Buy keywords are checked before
// sell keywords, so a message containing both is LONG.
func (p *Parser) DetectType(text string) (models.OperationType, bool) {
	op, idx, ok := detectType(text)
	if !ok {
		p.log.WithFields(logger.Fields{"field": FieldType}).Warn("operation type not detected")
		return "", false
	}
	p.metrics.FieldExtracted(FieldType)
	p.log.WithFields(logger.Fields{"field": FieldType, "value": op, "pattern": idx + 1}).Debug("operation type detected")
	return op, true
}

func detectType(text string) (models.OperationType, int, bool) {
	upper := normalizer.Normalize(strings.ToUpper(text))
	for i, re := range buyPatterns {
		if re.MatchString(upper) {
			return models.OperationLong, i, true
		}
	}
	for i, re := range sellPatterns {
		if re.MatchString(upper) {
			return models.OperationShort, i, true
		}
	}
	return "", -1, false
}
