package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/feedrelay/internal/domain"
)

func render(f domain.Feed) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "channel: %s\n", f.ChannelTitle)
	for i, it := range f.Items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, it.Title)
		if it.Description != "" {
			fmt.Fprintf(&b, "   %s\n", it.Description)
		}
	}
	return []byte(b.String())
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return raw
}

func manyItems(n int) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Wire</title>`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "<item><title>Story %d</title><description>Body %d</description></item>\n", i, i)
	}
	b.WriteString(`</channel></rss>`)
	return []byte(b.String())
}

func TestStrategies_Golden(t *testing.T) {
	raw := readFixture(t, "bbc.xml")
	for _, s := range []Strategy{XMLStrategy{}, PatternStrategy{}} {
		t.Run(s.Name(), func(t *testing.T) {
			f, err := s.Parse(raw)
			require.NoError(t, err)

			g := goldie.New(t)
			g.Assert(t, "bbc", render(f))
		})
	}
}

func TestStrategies_Agree(t *testing.T) {
	docs := map[string][]byte{
		"fixture": readFixture(t, "bbc.xml"),
		"nested markup": []byte(`<rss><channel><title>T</title>` +
			`<item><title>Breaking: <b>News</b></title><description>See <a href="x">here</a></description></item>` +
			`</channel></rss>`),
		"mixed cdata": []byte(`<rss><channel><title><![CDATA[Le Monde]]></title>` +
			`<item><title>Intro <![CDATA[<i>quoted</i>]]> end</title></item></channel></rss>`),
		"split cdata": []byte(`<rss><channel><title><![CDATA[Town]]> &amp; <![CDATA[Gown]]></title>` +
			`<item><title><![CDATA[a]]> &amp; <![CDATA[b]]></title>` +
			`<description><![CDATA[<p>x</p>]]> and <![CDATA[y]]></description></item></channel></rss>`),
		"numeric refs": []byte(`<rss><channel><title>N</title>` +
			`<item><title>&#x201C;Hi&#x201D; &#233;t&#233;</title><description>a &lt; b</description></item></channel></rss>`),
		"no channel title": []byte(`<rss><channel><item><title>Only</title></item></channel></rss>`),
		"many":             manyItems(120),
	}

	for name, raw := range docs {
		t.Run(name, func(t *testing.T) {
			structured, err := XMLStrategy{}.Parse(raw)
			require.NoError(t, err)
			pattern, err := PatternStrategy{}.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, structured, pattern)
		})
	}
}

func TestPatternStrategy_SplitCDATA(t *testing.T) {
	raw := []byte(`<rss><channel><title>T</title><item><title><![CDATA[a]]> &amp; <![CDATA[b]]></title></item></channel></rss>`)
	f, err := PatternStrategy{}.Parse(raw)
	require.NoError(t, err)
	require.Len(t, f.Items, 1)
	assert.Equal(t, "a & b", f.Items[0].Title)
}

func TestStrategies_CapAtMaxItems(t *testing.T) {
	raw := manyItems(200)
	for _, s := range []Strategy{XMLStrategy{}, PatternStrategy{}} {
		t.Run(s.Name(), func(t *testing.T) {
			f, err := s.Parse(raw)
			require.NoError(t, err)
			require.Len(t, f.Items, domain.MaxItems)
			assert.Equal(t, "Story 1", f.Items[0].Title)
			assert.Equal(t, "Story 50", f.Items[49].Title)
			assert.Equal(t, "Wire", f.ChannelTitle)
		})
	}
}

func TestStrategies_SkippedItemsDoNotCount(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<rss><channel><title>W</title>`)
	for i := 0; i < 10; i++ {
		b.WriteString(`<item><title> </title></item>`)
	}
	for i := 1; i <= 60; i++ {
		fmt.Fprintf(&b, "<item><title>S%d</title></item>", i)
	}
	b.WriteString(`</channel></rss>`)

	for _, s := range []Strategy{XMLStrategy{}, PatternStrategy{}} {
		f, err := s.Parse([]byte(b.String()))
		require.NoError(t, err)
		require.Len(t, f.Items, domain.MaxItems, s.Name())
		assert.Equal(t, "S50", f.Items[49].Title, s.Name())
	}
}

func TestStrategies_LongDescription(t *testing.T) {
	raw := []byte(`<rss><channel><title>L</title><item><title>Long</title><description>` +
		strings.Repeat("a", 520) + `</description></item></channel></rss>`)
	for _, s := range []Strategy{XMLStrategy{}, PatternStrategy{}} {
		f, err := s.Parse(raw)
		require.NoError(t, err)
		require.Len(t, f.Items, 1)
		d := f.Items[0].Description
		assert.Equal(t, domain.MaxDescriptionLen, utf8.RuneCountInString(d), s.Name())
		assert.Equal(t, strings.Repeat("a", 497)+"...", d, s.Name())
	}
}

func TestStrategies_Latin1(t *testing.T) {
	raw := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>" +
		"<rss><channel><title>Le Monde</title>" +
		"<item><title>Caf\xe9 cr\xe8me</title><description>\xc9t\xe9</description></item>" +
		"</channel></rss>")
	for _, s := range []Strategy{XMLStrategy{}, PatternStrategy{}} {
		f, err := s.Parse(raw)
		require.NoError(t, err, s.Name())
		require.Len(t, f.Items, 1, s.Name())
		assert.Equal(t, "Café crème", f.Items[0].Title, s.Name())
		assert.Equal(t, "Été", f.Items[0].Description, s.Name())
	}
}

func TestXMLStrategy_Malformed(t *testing.T) {
	cases := map[string]string{
		"unknown entity": readString(t, "malformed.xml"),
		"mismatched":     `<rss><channel><item><title>x</item></channel></rss>`,
		"unclosed":       `<rss><channel><item><title>x</title></item>`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := XMLStrategy{}.Parse([]byte(raw))
			require.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func readString(t *testing.T, name string) string {
	t.Helper()
	return string(readFixture(t, name))
}

func TestPatternStrategy_Malformed(t *testing.T) {
	f, err := PatternStrategy{}.Parse(readFixture(t, "malformed.xml"))
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "malformed", render(f))
}

func TestParser_FallsBack(t *testing.T) {
	p := NewParser(nil)

	res := p.Parse(readFixture(t, "malformed.xml"))
	assert.Equal(t, "pattern", res.Strategy)
	assert.Len(t, res.Feed.Items, 2)

	res = p.Parse(readFixture(t, "bbc.xml"))
	assert.Equal(t, "xml", res.Strategy)
	assert.Equal(t, "BBC & World", res.Feed.ChannelTitle)
	assert.Len(t, res.Feed.Items, 4)
}

func TestParser_Empty(t *testing.T) {
	p := NewParser(nil)

	res := p.Parse([]byte(`<rss><channel><title>Nothing</title></channel></rss>`))
	assert.True(t, res.Feed.Empty())
	assert.Equal(t, "xml", res.Strategy)
	assert.Equal(t, "Nothing", res.Feed.ChannelTitle)

	res = p.Parse([]byte("not a feed"))
	assert.True(t, res.Feed.Empty())
	assert.Equal(t, "xml", res.Strategy)
}

type stubStrategy struct {
	name string
	feed domain.Feed
	err  error
}

func (s stubStrategy) Name() string                       { return s.name }
func (s stubStrategy) Parse([]byte) (domain.Feed, error) { return s.feed, s.err }

func TestParser_StrategyOrder(t *testing.T) {
	first := stubStrategy{name: "first", err: domain.ErrParse}
	second := stubStrategy{name: "second", feed: domain.Feed{Items: []domain.NewsItem{{Title: "a"}}}}
	third := stubStrategy{name: "third", feed: domain.Feed{Items: []domain.NewsItem{{Title: "b"}}}}

	res := NewParser(nil, first, second, third).Parse(nil)
	assert.Equal(t, "second", res.Strategy)
	assert.Equal(t, "a", res.Feed.Items[0].Title)

	res = NewParser(nil, first).Parse(nil)
	assert.Equal(t, Result{}, res)
}

func TestUnescapeXML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a &amp; b", "a & b"},
		{"&amp;amp;", "&amp;"},
		{"&#233;&#xE9;", "éé"},
		{"&nbsp;", "&nbsp;"},
		{"&#xD800;", "&#xD800;"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unescapeXML(tt.in), tt.in)
	}
}

func TestXMLText(t *testing.T) {
	assert.Equal(t, "<b>x</b> & y", xmlText("<![CDATA[<b>x</b>]]> &amp; y"))
	assert.Equal(t, "a &amp; <i>", xmlText("a &amp;amp; <![CDATA[<i>"))
}
