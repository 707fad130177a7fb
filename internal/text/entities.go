// Package text normalises feed text for a small display: HTML entity
// decoding, tag stripping, and length clamping.
package text

import "regexp"

// entityTable maps the references the device can render to their literal form.
// Typographic punctuation is folded to ASCII; the device font has no glyphs for it.
var entityTable = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#39;":  "'",
	"&apos;": "'",
	"&nbsp;": " ",
	"&#160;": " ",

	"&#8217;": "'",
	"&#8220;": `"`,
	"&#8221;": `"`,
	"&#8211;": "-",
	"&#8212;": "-",
	"&rsquo;": "'",
	"&lsquo;": "'",
	"&rdquo;": `"`,
	"&ldquo;": `"`,
	"&mdash;": "-",
	"&ndash;": "-",

	"&eacute;": "é", "&#233;": "é",
	"&egrave;": "è", "&#232;": "è",
	"&ecirc;": "ê", "&#234;": "ê",
	"&euml;": "ë", "&#235;": "ë",
	"&agrave;": "à", "&#224;": "à",
	"&acirc;": "â", "&#226;": "â",
	"&auml;": "ä", "&#228;": "ä",
	"&ugrave;": "ù", "&#249;": "ù",
	"&ucirc;": "û", "&#251;": "û",
	"&uuml;": "ü", "&#252;": "ü",
	"&ocirc;": "ô", "&#244;": "ô",
	"&ouml;": "ö", "&#246;": "ö",
	"&icirc;": "î", "&#238;": "î",
	"&iuml;": "ï", "&#239;": "ï",
	"&ccedil;": "ç", "&#231;": "ç",
	"&aelig;": "æ", "&#230;": "æ",
	"&oelig;": "œ", "&#339;": "œ",

	"&Eacute;": "É", "&#201;": "É",
	"&Egrave;": "È", "&#200;": "È",
	"&Ecirc;": "Ê", "&#202;": "Ê",
	"&Agrave;": "À", "&#192;": "À",
	"&Acirc;": "Â", "&#194;": "Â",
	"&Ccedil;": "Ç", "&#199;": "Ç",
}

var reEntity = regexp.MustCompile(`&(?:#[0-9]{1,7}|[A-Za-z][A-Za-z0-9]{1,31});`)

// DecodeEntities replaces the references in the entity table with their
// literal characters. The scan is a single left-to-right pass: text produced
// by one substitution is never examined again, so "&amp;lt;" yields "&lt;".
// References outside the table are left as they are.
func DecodeEntities(s string) string {
	if s == "" {
		return ""
	}
	return reEntity.ReplaceAllStringFunc(s, func(ref string) string {
		if lit, ok := entityTable[ref]; ok {
			return lit
		}
		return ref
	})
}
