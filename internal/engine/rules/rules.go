// Package rules implements the static URL heuristics. Each check can only
// raise the risk level; none lowers it.
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/tabguard/internal/engine/features"
	"github.com/crimson-sun/tabguard/internal/model"
)

const (
	maxURLLength = 200
	maxLabels    = 4
	maxHyphens   = 2
)

var (
	internalPrefixes = []string{
		"chrome://",
		"chrome-extension://",
		"edge://",
		"about:",
		"moz-extension://",
	}

	riskyTLDs         = []string{".tk", ".ml", ".ga", ".cf", ".gq", ".xyz", ".top"}
	sensitiveKeywords = []string{"login", "password", "bank", "paypal", "verify"}

	dottedQuad = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
)

// Issue messages.
const (
	MsgInternal  = "Internal browser page – no scan needed"
	MsgHTTP      = "Insecure HTTP connection"
	MsgRawIP     = "Using raw IP address instead of domain"
	MsgLongURL   = "Unusually long URL"
	MsgSubdomain = "Multiple subdomains – possible obfuscation"
	MsgAt        = "URL contains @ symbol – classic phishing trick"
	MsgHomograph = "Potential homograph attack (lookalike characters)"
	MsgHyphens   = "Multiple hyphens – possible typosquatting"
)

// Result is the outcome of evaluating one URL.
type Result struct {
	Risk   model.RiskLevel
	Issues []model.Issue
	// Internal is set for browser-internal pages; no other check ran.
	Internal bool
	// Unparsed is set when the URL could not be parsed; no other check ran.
	Unparsed bool
	// Parsed holds the URL components when parsing succeeded.
	Parsed features.Parsed
}

// Scannable reports whether later stages (classifiers) should look at the URL.
func (r Result) Scannable() bool {
	return !r.Internal && !r.Unparsed
}

func (r *Result) raise(level model.RiskLevel, kind model.IssueKind, msg string) {
	r.Risk = r.Risk.Escalate(level)
	r.Issues = append(r.Issues, model.Issue{Kind: kind, Message: msg})
}

func (r *Result) warn(msg string)   { r.raise(model.Warning, model.KindWarning, msg) }
func (r *Result) danger(msg string) { r.raise(model.Danger, model.KindDanger, msg) }

// IsInternal reports whether rawURL is empty or a browser-internal page.
func IsInternal(rawURL string) bool {
	if rawURL == "" {
		return true
	}
	for _, p := range internalPrefixes {
		if strings.HasPrefix(rawURL, p) {
			return true
		}
	}
	return false
}

// Evaluate runs every check on rawURL in a fixed order.
func Evaluate(rawURL string) Result {
	var r Result
	if IsInternal(rawURL) {
		r.Internal = true
		r.Issues = []model.Issue{{Kind: model.KindInfo, Message: MsgInternal}}
		return r
	}

	p, err := features.Parse(rawURL)
	if err != nil {
		r.Unparsed = true
		r.Issues = []model.Issue{{Kind: model.KindInfo, Message: "Could not analyse URL: " + err.Error()}}
		return r
	}
	r.Parsed = p
	host := p.Hostname
	isHTTP := p.Scheme == "http"

	if isHTTP {
		r.warn(MsgHTTP)
	}
	if tld, ok := riskyTLD(host); ok {
		r.warn(fmt.Sprintf("Suspicious TLD detected (%s)", tld))
	}
	if dottedQuad.MatchString(host) {
		r.warn(MsgRawIP)
	}
	if utf8.RuneCountInString(rawURL) > maxURLLength {
		r.warn(MsgLongURL)
	}
	if len(strings.Split(host, ".")) > maxLabels {
		r.warn(MsgSubdomain)
	}
	if strings.Contains(rawURL, "@") {
		r.danger(MsgAt)
	}
	if found := matchKeywords(strings.ToLower(rawURL)); len(found) > 0 && isHTTP {
		r.danger("Sensitive keywords over HTTP: " + strings.Join(found, ", "))
	}
	if hasCyrillic(host) {
		r.danger(MsgHomograph)
	}
	if strings.Count(host, "-") > maxHyphens {
		r.warn(MsgHyphens)
	}

	if len(r.Issues) == 0 {
		r.Issues = []model.Issue{{Kind: model.KindClear, Message: model.NoIssuesMessage}}
	}
	return r
}

// riskyTLD returns the risky suffix host ends with.
func riskyTLD(host string) (string, bool) {
	for _, t := range riskyTLDs {
		if strings.HasSuffix(host, t) {
			return t, true
		}
	}
	return "", false
}

func matchKeywords(lower string) []string {
	var found []string
	for _, k := range sensitiveKeywords {
		if strings.Contains(lower, k) {
			found = append(found, k)
		}
	}
	return found
}

// hasCyrillic checks host for Cyrillic characters, both as given and after
// decoding punycode labels, with compatibility forms folded.
func hasCyrillic(host string) bool {
	candidates := []string{host}
	if decoded, err := idna.Punycode.ToUnicode(host); err == nil && decoded != host {
		candidates = append(candidates, decoded)
	}
	for _, c := range candidates {
		for _, r := range norm.NFKC.String(c) {
			if unicode.Is(unicode.Cyrillic, r) {
				return true
			}
		}
	}
	return false
}
