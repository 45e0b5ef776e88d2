package features

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalidURL is returned when a URL cannot be parsed into the components
// the extractor needs.
var ErrInvalidURL = errors.New("invalid url")

var (
	ipPattern  = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
	hexPattern = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
)

var (
	unusualPorts = []int{8080, 8888, 3000, 4000, 5000, 8000}

	suspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf", ".gq", ".xyz", ".top", ".cc", ".pw"}
	commonTLDs     = []string{".com", ".org", ".net", ".edu", ".gov"}

	phishingKeywords = []string{
		"login", "verify", "account", "update", "secure",
		"banking", "paypal", "ebay", "confirm", "signin",
		"password", "credential", "suspended", "locked",
	}
	brandKeywords = []string{
		"google", "facebook", "amazon", "microsoft", "apple",
		"paypal", "netflix", "instagram", "twitter", "bank",
	}

	suspiciousExtensions = []string{".exe", ".zip", ".rar", ".apk", ".bat"}
)

// Schemes whose URLs must carry a host, and the port each implies.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// Parsed is the subset of a parsed URL the extractor and rule engine share.
type Parsed struct {
	Scheme   string
	Hostname string // lowercased
	Port     string // empty when absent or equal to the scheme default
	Path     string // escaped; "/" for hierarchical URLs with an empty path
	Query    string // including the leading "?", empty when there is none
}

// Parse splits rawURL into its components. It fails with ErrInvalidURL when
// the URL has no scheme, does not parse, or is a web URL without a host.
func Parse(rawURL string) (Parsed, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" {
		return Parsed{}, fmt.Errorf("%w: missing scheme in %q", ErrInvalidURL, rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	defPort, web := defaultPorts[scheme]
	if web && u.Host == "" {
		return Parsed{}, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}

	p := Parsed{
		Scheme:   scheme,
		Hostname: strings.ToLower(u.Hostname()),
		Port:     u.Port(),
		Path:     u.EscapedPath(),
	}
	if p.Port == defPort {
		p.Port = ""
	}
	if p.Path == "" && u.Opaque == "" {
		p.Path = "/"
	}
	if u.RawQuery != "" {
		p.Query = "?" + u.RawQuery
	}
	return p, nil
}

// Extract computes the feature vector for rawURL.
func Extract(rawURL string) (Vector, error) {
	p, err := Parse(rawURL)
	if err != nil {
		return Vector{}, err
	}

	var v Vector
	lower := strings.ToLower(rawURL)
	host := p.Hostname

	urlLen := utf8.RuneCountInString(rawURL)
	v.set("url_length", float64(urlLen))
	v.set("domain_length", float64(utf8.RuneCountInString(host)))
	v.set("path_length", float64(utf8.RuneCountInString(p.Path)))
	v.set("query_length", float64(utf8.RuneCountInString(p.Query)))

	hyphens := strings.Count(rawURL, "-")
	underscores := strings.Count(rawURL, "_")
	digits, letters := countDigitsLetters(rawURL)
	v.set("num_dots", float64(strings.Count(rawURL, ".")))
	v.set("num_hyphens", float64(hyphens))
	v.set("num_underscores", float64(underscores))
	v.set("num_slashes", float64(strings.Count(rawURL, "/")))
	v.set("num_questionmarks", float64(strings.Count(rawURL, "?")))
	v.set("num_equals", float64(strings.Count(rawURL, "=")))
	v.set("num_at", float64(strings.Count(rawURL, "@")))
	v.set("num_ampersands", float64(strings.Count(rawURL, "&")))
	v.set("num_percent", float64(strings.Count(rawURL, "%")))
	v.set("num_digits", float64(digits))
	v.set("num_letters", float64(letters))

	denom := float64(max(urlLen, 1))
	v.set("digit_letter_ratio", float64(digits)/denom)
	v.set("special_char_ratio", float64(hyphens+underscores)/denom)

	v.setBool("has_https", p.Scheme == "https")
	v.setBool("has_http", p.Scheme == "http")
	v.setBool("has_ip", ipPattern.MatchString(host))

	if p.Port != "" {
		v.set("has_port", 1)
		if port, err := strconv.Atoi(p.Port); err == nil {
			v.set("port_number", float64(port))
			v.setBool("unusual_port", slices.Contains(unusualPorts, port))
		}
	}

	v.set("subdomain_count", float64(max(0, len(strings.Split(host, "."))-2)))
	v.setBool("has_www", strings.Contains(host, "www"))
	v.setBool("suspicious_tld", hasAnySuffix(lower, suspiciousTLDs))
	v.setBool("common_tld", hasAnySuffix(lower, commonTLDs))

	v.set("phishing_keywords", float64(countContained(lower, phishingKeywords)))
	v.set("brand_keywords", float64(countContained(lower, brandKeywords)))

	v.set("url_entropy", Entropy(rawURL))
	v.set("domain_entropy", Entropy(host))

	v.setBool("double_slash", strings.Contains(p.Path, "//"))
	v.set("hex_chars", float64(len(hexPattern.FindAllStringIndex(rawURL, -1))))
	v.setBool("multiple_at", strings.Count(rawURL, "@") > 1)
	v.set("path_depth", float64(countNonEmpty(strings.Split(p.Path, "/"))))
	v.setBool("suspicious_extension", countContained(lower, suspiciousExtensions) > 0)
	v.set("num_query_params", float64(countNonEmpty(strings.Split(strings.TrimPrefix(p.Query, "?"), "&"))))

	v.set("repeating_chars", float64(longestRun(host)))
	v.setBool("domain_has_digits", strings.ContainsFunc(host, isDigit))

	return v, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func countDigitsLetters(s string) (digits, letters int) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			letters++
		}
	}
	return digits, letters
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func countContained(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func countNonEmpty(parts []string) int {
	n := 0
	for _, p := range parts {
		if p != "" {
			n++
		}
	}
	return n
}

// longestRun returns the length of the longest run of one repeated rune.
// An empty string yields 1, matching the single-run convention the model was
// trained with.
func longestRun(s string) int {
	best, cur := 1, 0
	var prev rune
	for i, r := range []rune(s) {
		if i > 0 && r == prev {
			cur++
		} else {
			cur = 1
		}
		prev = r
		best = max(best, cur)
	}
	return best
}
