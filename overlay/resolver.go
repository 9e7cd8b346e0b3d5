package overlay

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"abstatus/dom"
)

// ResolveIdentifier extracts the page identifier using the Lenus profile.
// It tries the "ID:" label, then the form preview link, then the URL, and
// returns the first non-empty match lowercased, or "".
func ResolveIdentifier(doc *html.Node, location string) string {
	return defaultProfile.resolve(doc, location)
}

func (cp *compiledProfile) resolve(doc *html.Node, location string) string {
	if id := cp.idFromLabel(doc); id != "" {
		return id
	}
	if id := cp.idFromPreviewLink(doc, location); id != "" {
		return id
	}
	return firstGroup(cp.locationPat, location)
}

func (cp *compiledProfile) idFromLabel(doc *html.Node) string {
	if doc == nil || cp.idLabel == nil || cp.idPattern == nil {
		return ""
	}
	for _, n := range cp.idLabel.MatchAll(doc) {
		text := dom.Text(n)
		if !strings.Contains(text, "ID:") {
			continue
		}
		if id := firstGroup(cp.idPattern, text); id != "" {
			return id
		}
	}
	return ""
}

func (cp *compiledProfile) idFromPreviewLink(doc *html.Node, location string) string {
	if doc == nil || cp.previewLink == nil {
		return ""
	}
	a := cp.previewLink.MatchFirst(doc)
	if a == nil {
		return ""
	}
	return firstGroup(cp.previewPat, absoluteHref(dom.Attr(a, "href"), location))
}

func firstGroup(re *regexp.Regexp, s string) string {
	if re == nil || s == "" {
		return ""
	}
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(m[1]))
}

// absoluteHref resolves href against base the way HTMLAnchorElement.href does.
func absoluteHref(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || b.Scheme == "" {
		return href
	}
	return b.ResolveReference(ref).String()
}
