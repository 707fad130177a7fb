package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/bft-labs/feedrelay/internal/domain"
	"github.com/bft-labs/feedrelay/internal/text"
)

// XMLStrategy reads a feed as a well-formed XML tree.
//
// Elements are matched by qualified name, so <media:title> is never taken for
// <title>. The text of an element is the concatenation of all text and CDATA
// below it. Any syntax error fails the whole document.
//
// The item cap counts accepted items: an <item> without a usable title is
// skipped and does not use up one of the domain.MaxItems slots.
type XMLStrategy struct{}

// Name implements Strategy.
func (XMLStrategy) Name() string { return "xml" }

// Parse implements Strategy.
func (XMLStrategy) Parse(raw []byte) (domain.Feed, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel

	var (
		feed  domain.Feed
		stack []string
		w     treeWalker
	)
	for len(feed.Items) < domain.MaxItems {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			if len(stack) > 0 {
				return domain.Feed{}, fmt.Errorf("%w: unclosed <%s>", domain.ErrParse, stack[len(stack)-1])
			}
			break
		}
		if err != nil {
			return domain.Feed{}, fmt.Errorf("%w: %v", domain.ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := qualifiedName(t.Name)
			stack = append(stack, name)
			w.open(name, len(stack))
		case xml.EndElement:
			name := qualifiedName(t.Name)
			if len(stack) == 0 || stack[len(stack)-1] != name {
				return domain.Feed{}, fmt.Errorf("%w: unexpected </%s>", domain.ErrParse, name)
			}
			if item, ok := w.close(len(stack)); ok {
				feed.Items = append(feed.Items, item)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			w.text(t)
		}
	}

	feed.ChannelTitle = w.channelTitle()
	return feed, nil
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// capture accumulates the text below one element.
// depth is the stack depth of that element, zero when idle.
type capture struct {
	buf   strings.Builder
	depth int
	found bool
}

func (c *capture) start(depth int) {
	if c.found || c.depth != 0 {
		return
	}
	c.buf.Reset()
	c.depth = depth
	c.found = true
}

func (c *capture) write(b []byte) {
	if c.depth != 0 {
		c.buf.Write(b)
	}
}

func (c *capture) end(depth int) {
	if c.depth == depth {
		c.depth = 0
	}
}

func (c *capture) reset() {
	c.buf.Reset()
	c.depth = 0
	c.found = false
}

// treeWalker tracks the first <channel> with its first <title>, and the
// first <title> and <description> of the current <item>.
type treeWalker struct {
	channelDepth int
	channelSeen  bool
	chTitle      capture

	itemDepth int
	title     capture
	desc      capture
}

func (w *treeWalker) open(name string, depth int) {
	switch {
	case name == "channel" && !w.channelSeen:
		w.channelSeen = true
		w.channelDepth = depth
	case name == "item" && w.itemDepth == 0:
		w.itemDepth = depth
		w.title.reset()
		w.desc.reset()
	}

	if name == "title" && w.channelDepth != 0 {
		w.chTitle.start(depth)
	}
	if w.itemDepth != 0 && depth > w.itemDepth {
		switch name {
		case "title":
			w.title.start(depth)
		case "description":
			w.desc.start(depth)
		}
	}
}

func (w *treeWalker) text(b []byte) {
	w.chTitle.write(b)
	w.title.write(b)
	w.desc.write(b)
}

// close ends the element at depth and returns the finished item, if any.
func (w *treeWalker) close(depth int) (domain.NewsItem, bool) {
	w.chTitle.end(depth)
	w.title.end(depth)
	w.desc.end(depth)

	if depth == w.channelDepth {
		w.channelDepth = 0
	}
	if depth != w.itemDepth {
		return domain.NewsItem{}, false
	}
	w.itemDepth = 0
	return buildItem(w.title.buf.String(), w.title.found, w.desc.buf.String(), w.desc.found)
}

func (w *treeWalker) channelTitle() string {
	if !w.chTitle.found {
		return ""
	}
	return text.Normalize(w.chTitle.buf.String())
}
