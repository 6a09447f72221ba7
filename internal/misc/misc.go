package misc

import (
	"strings"

	"golang.org/x/exp/constraints"
	"golang.org/x/net/html"
)

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func StringLimit(s string, n int) string {
	if n < 0 {
		return ""
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:Min(n, len(r))])
	}
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

// PlainText drops any markup from s and collapses whitespace.
func PlainText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

// Dedup returns the non-empty values of ss in first-seen order.
func Dedup(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Chunk splits ss into consecutive slices of at most n elements.
func Chunk[T any](ss []T, n int) [][]T {
	if n <= 0 {
		return [][]T{ss}
	}
	var out [][]T
	for len(ss) > 0 {
		end := Min(n, len(ss))
		out = append(out, ss[:end])
		ss = ss[end:]
	}
	return out
}
