package feed

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/bft-labs/feedrelay/internal/domain"
	"github.com/bft-labs/feedrelay/internal/text"
)

var (
	itemPattern         = regexp.MustCompile(`<item[^>]*>([\s\S]*?)</item>`)
	titlePattern        = regexp.MustCompile(`<title[^>]*>([\s\S]*?)</title>`)
	descriptionPattern  = regexp.MustCompile(`<description[^>]*>([\s\S]*?)</description>`)
	channelTitlePattern = regexp.MustCompile(`<channel[^>]*>[\s\S]*?<title[^>]*>([\s\S]*?)</title>`)

	prologEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*encoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)
	xmlReference   = regexp.MustCompile(`&(?:#[0-9]+|#x[0-9A-Fa-f]+|amp|lt|gt|quot|apos);`)
)

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// PatternStrategy scans a feed with regular expressions. It tolerates
// documents that are not well-formed, at the cost of ignoring nesting.
// Captured element content keeps its CDATA markers; xmlText unwraps every
// section, so split CDATA reads the same as in the XML strategy.
type PatternStrategy struct{}

// Name implements Strategy.
func (PatternStrategy) Name() string { return "pattern" }

// Parse implements Strategy. It never fails; a document without recognisable
// items yields an empty feed.
func (PatternStrategy) Parse(raw []byte) (domain.Feed, error) {
	doc := decodeDocument(raw)

	var feed domain.Feed
	if m := channelTitlePattern.FindStringSubmatch(doc); m != nil {
		feed.ChannelTitle = text.Normalize(xmlText(m[1]))
	}

	for _, m := range itemPattern.FindAllStringSubmatch(doc, -1) {
		if len(feed.Items) == domain.MaxItems {
			break
		}
		block := m[1]
		var title, desc string
		t := titlePattern.FindStringSubmatch(block)
		if t != nil {
			title = xmlText(t[1])
		}
		d := descriptionPattern.FindStringSubmatch(block)
		if d != nil {
			desc = xmlText(d[1])
		}
		if item, ok := buildItem(title, t != nil, desc, d != nil); ok {
			feed.Items = append(feed.Items, item)
		}
	}
	return feed, nil
}

// decodeDocument converts raw to UTF-8 using the encoding declared in the
// XML prolog. Unknown or missing declarations leave the bytes as they are.
func decodeDocument(raw []byte) string {
	head := raw
	if len(head) > 256 {
		head = head[:256]
	}
	m := prologEncoding.FindSubmatch(head)
	if m == nil || strings.EqualFold(string(m[1]), "utf-8") {
		return string(raw)
	}
	r, err := charset.NewReaderLabel(string(m[1]), bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// xmlText turns captured element content into character data: CDATA
// sections are taken literally and XML references elsewhere are resolved.
// A CDATA section left open by the capture runs to the end of s.
func xmlText(s string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, cdataOpen)
		if i < 0 {
			b.WriteString(unescapeXML(s))
			return b.String()
		}
		b.WriteString(unescapeXML(s[:i]))
		s = s[i+len(cdataOpen):]
		j := strings.Index(s, cdataClose)
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:j])
		s = s[j+len(cdataClose):]
	}
}

// unescapeXML resolves the five predefined XML entities and numeric
// character references in one pass. Everything else is left for
// text.DecodeEntities.
func unescapeXML(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return xmlReference.ReplaceAllStringFunc(s, func(ref string) string {
		switch ref {
		case "&amp;":
			return "&"
		case "&lt;":
			return "<"
		case "&gt;":
			return ">"
		case "&quot;":
			return `"`
		case "&apos;":
			return "'"
		}
		num := ref[2 : len(ref)-1]
		base := 10
		if num[0] == 'x' {
			num, base = num[1:], 16
		}
		n, err := strconv.ParseUint(num, base, 32)
		if err != nil || !utf8.ValidRune(rune(n)) {
			return ref
		}
		return string(rune(n))
	})
}
