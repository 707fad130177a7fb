// Package feed turns raw RSS documents into normalised news items.
//
// Two interchangeable strategies read a document: XMLStrategy walks the
// element tree, PatternStrategy scans the raw text with regular expressions
// and survives documents that are not well-formed XML. Parser tries them in
// order and keeps the first one that yields items.
package feed

import (
	"github.com/bft-labs/feedrelay/internal/domain"
	"github.com/bft-labs/feedrelay/internal/text"
	"github.com/bft-labs/feedrelay/pkg/log"
)

// Strategy reads one raw feed document.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Parse extracts the channel title and at most domain.MaxItems items.
	// An unreadable document is an error wrapping domain.ErrParse.
	Parse(raw []byte) (domain.Feed, error)
}

// Parser tries each strategy in order and returns the first non-empty result.
type Parser struct {
	strategies []Strategy
	logger     log.Logger
}

// NewParser creates a parser over the given strategies.
// Without strategies it uses XMLStrategy followed by PatternStrategy.
func NewParser(logger log.Logger, strategies ...Strategy) *Parser {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if len(strategies) == 0 {
		strategies = []Strategy{XMLStrategy{}, PatternStrategy{}}
	}
	return &Parser{strategies: strategies, logger: logger}
}

// Result is the outcome of Parser.Parse.
type Result struct {
	Feed domain.Feed

	// Strategy names the strategy that produced Feed, empty if none succeeded
	Strategy string
}

// Parse runs the strategies. A strategy that errors or finds no items hands
// over to the next one. When every strategy comes up empty the result has no
// items; that is reported through the logger, not as an error.
func (p *Parser) Parse(raw []byte) Result {
	var fallback *Result
	for _, s := range p.strategies {
		f, err := s.Parse(raw)
		if err != nil {
			p.logger.Warn("parse strategy failed",
				log.String("strategy", s.Name()),
				log.Err(err))
			continue
		}
		res := Result{Feed: f, Strategy: s.Name()}
		if !f.Empty() {
			p.logger.Debug("feed parsed",
				log.String("strategy", s.Name()),
				log.Int("items", f.Len()))
			return res
		}
		p.logger.Debug("parse strategy found no items", log.String("strategy", s.Name()))
		if fallback == nil {
			fallback = &res
		}
	}

	p.logger.Warn("no valid items found in feed", log.Int("bytes", len(raw)))
	if fallback != nil {
		return *fallback
	}
	return Result{}
}

// buildItem applies the shared item rules to extracted text.
// hasTitle and hasDesc report whether the element existed at all.
func buildItem(title string, hasTitle bool, desc string, hasDesc bool) (domain.NewsItem, bool) {
	if !hasTitle {
		return domain.NewsItem{}, false
	}
	t := text.Normalize(title)
	if t == "" {
		return domain.NewsItem{}, false
	}
	var d string
	if hasDesc {
		d = text.NormalizeDescription(desc)
	}
	return domain.NewsItem{Title: t, Description: d}, true
}
