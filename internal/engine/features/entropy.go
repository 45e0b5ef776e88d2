package features

import "math"

// Entropy computes the Shannon entropy (base 2) of s over its runes.
// The empty string has entropy 0. Terms are summed in first-occurrence
// order so the result is bit-identical across calls.
func Entropy(s string) float64 {
	freq := make(map[rune]int)
	var order []rune
	n := 0
	for _, r := range s {
		if freq[r] == 0 {
			order = append(order, r)
		}
		freq[r]++
		n++
	}
	total := float64(max(n, 1))

	var entropy float64
	for _, r := range order {
		p := float64(freq[r]) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
