package features

// Count is the number of features every Vector carries.
const Count = 39

// names lists every feature in the built-in fallback order. The position of a
// name here is its index in Vector.
var names = [Count]string{
	"url_length",
	"domain_length",
	"path_length",
	"query_length",
	"num_dots",
	"num_hyphens",
	"num_underscores",
	"num_slashes",
	"num_questionmarks",
	"num_equals",
	"num_at",
	"num_ampersands",
	"num_percent",
	"num_digits",
	"num_letters",
	"digit_letter_ratio",
	"special_char_ratio",
	"has_https",
	"has_http",
	"has_ip",
	"has_port",
	"port_number",
	"unusual_port",
	"subdomain_count",
	"has_www",
	"suspicious_tld",
	"common_tld",
	"phishing_keywords",
	"brand_keywords",
	"url_entropy",
	"domain_entropy",
	"double_slash",
	"hex_chars",
	"multiple_at",
	"path_depth",
	"suspicious_extension",
	"num_query_params",
	"repeating_chars",
	"domain_has_digits",
}

var index = func() map[string]int {
	m := make(map[string]int, Count)
	for i, n := range names {
		m[n] = i
	}
	return m
}()

// Names returns the feature names in fallback order. The slice is a copy.
func Names() []string {
	out := make([]string, Count)
	copy(out, names[:])
	return out
}

// Known reports whether name is one of the extracted features.
func Known(name string) bool {
	_, ok := index[name]
	return ok
}

// Vector holds the computed features for one URL. Every name is always
// present; values not computed stay 0.
type Vector struct {
	vals [Count]float64
}

// Value returns the named feature, or 0 for a name the extractor does not produce.
func (v Vector) Value(name string) float64 {
	if i, ok := index[name]; ok {
		return v.vals[i]
	}
	return 0
}

// Ordered returns the values in fallback order.
func (v Vector) Ordered() []float64 {
	out := make([]float64, Count)
	copy(out, v.vals[:])
	return out
}

// Map returns the vector as a name → value map.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, Count)
	for i, n := range names {
		m[n] = v.vals[i]
	}
	return m
}

func (v *Vector) set(name string, val float64) {
	v.vals[index[name]] = val
}

func (v *Vector) setBool(name string, b bool) {
	if b {
		v.set(name, 1)
	} else {
		v.set(name, 0)
	}
}
