package live

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a rendered profile page as handed over by a Renderer.
type Page struct {
	Username string
	URL      string
	// HTML is the rendered document.
	HTML string
	// State is the serialized bootstrap blob read from the page's JS
	// runtime. Empty when the renderer could not read it.
	State string
}

// Script elements TikTok embeds its bootstrap state in, newest layout last.
const stateSelector = "script#SIGI_STATE, script#__UNIVERSAL_DATA_FOR_REHYDRATION__"

// Subtrees a visitor cannot see.
const hiddenSelector = `script, style, noscript, template, [hidden], [aria-hidden="true"],` +
	` [style*="display:none"], [style*="display: none"],` +
	` [style*="visibility:hidden"], [style*="visibility: hidden"]`

var (
	roomIDPattern = regexp.MustCompile(`"roomId":"?(\d{8,})"?`)
	titlePattern  = regexp.MustCompile(`"title":"((?:[^"\\]|\\.){1,120})"`)
	badgePattern  = regexp.MustCompile(`\bLIVE\b`)

	errNoState = errors.New("no state blob on page")
)

// Extract derives a best-effort live verdict from a rendered page.
// It never fails: a malformed state blob counts as no signal and the
// visible "LIVE" badge is consulted instead.
func Extract(p Page) Verdict {
	var v Verdict

	if blob, err := stateBlob(p); err == nil {
		if m := roomIDPattern.FindStringSubmatch(blob); m != nil {
			v.Live = true
			v.RoomID = m[1]
		}
		if m := titlePattern.FindStringSubmatch(blob); m != nil {
			v.Title = decodeTitle(m[1])
		}
	}

	if !v.Live && hasLiveBadge(p.HTML) {
		v.Live = true
	}
	return v
}

// stateBlob returns the compacted bootstrap state of the page. The
// regexes above assume JSON.stringify output, so whitespace is removed.
func stateBlob(p Page) (string, error) {
	raw := strings.TrimSpace(p.State)
	if raw == "" || raw == "null" {
		raw = embeddedState(p.HTML)
	}
	if raw == "" {
		return "", newError(ErrParse, NormalizeAccount(p.Username), errNoState)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return "", newError(ErrParse, NormalizeAccount(p.Username), err)
	}
	return buf.String(), nil
}

func embeddedState(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find(stateSelector).First().Text())
}

func decodeTitle(quoted string) string {
	var s string
	if err := json.Unmarshal([]byte(`"`+quoted+`"`), &s); err != nil {
		return quoted
	}
	return s
}

// hasLiveBadge reports whether a visible text node of the document
// contains LIVE as a whole word. This is narrower than a substring
// match: DELIVERED or LIVENOW do not count.
func hasLiveBadge(html string) bool {
	if html == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	doc.Find(hiddenSelector).Remove()
	badges := doc.Find("body, body *").Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
		return goquery.NodeName(c) == "#text" && badgePattern.MatchString(c.Text())
	})
	return badges.Length() > 0
}
