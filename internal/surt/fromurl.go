package surt

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// URLError reports a URL that has no SURT form: a scheme other than http or
// https, an explicit non-default port, or a host that is not a domain name.
type URLError struct {
	URL    string
	Reason string
}

func (e *URLError) Error() string {
	return fmt.Sprintf("unexpected URL %q: %s", e.URL, e.Reason)
}

var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.StrictDomainName(false),
	idna.Transitional(false),
)

var defaultPorts = map[string]int{"http": 80, "https": 443}

// FromURL computes the SURT key the Wayback Machine index assigns to raw.
//
// The whole URL is lowercased before parsing. Host labels are reversed with a
// leading www dropped. The path keeps the index's partial unescaping and loses
// one trailing slash. Query pairs are sorted by key with ties kept in input
// order.
func FromURL(raw string) (Surt, error) {
	s := cases.Lower(language.Und).String(raw)
	s = strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })
	s = strings.NewReplacer("\t", "", "\n", "", "\r", "").Replace(s)

	var scheme string
	switch {
	case strings.HasPrefix(s, "https:"):
		scheme, s = "https", s[len("https:"):]
	case strings.HasPrefix(s, "http:"):
		scheme, s = "http", s[len("http:"):]
	default:
		return Surt{}, &URLError{URL: raw, Reason: "scheme must be http or https"}
	}
	s = strings.TrimLeft(s, `/\`)

	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	query, hasQuery := "", false
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s, query, hasQuery = s[:i], s[i+1:], true
	}
	authority, path := s, ""
	if i := strings.IndexAny(s, `/\`); i >= 0 {
		authority, path = s[:i], s[i:]
	}

	host, err := splitPort(scheme, authority)
	if err != nil {
		return Surt{}, &URLError{URL: raw, Reason: err.Error()}
	}
	labels, err := domainLabels(host)
	if err != nil {
		return Surt{}, &URLError{URL: raw, Reason: err.Error()}
	}

	var b strings.Builder
	lens := make([]uint8, 0, len(labels))
	for i := len(labels) - 1; i >= 0; i-- {
		b.WriteString(labels[i])
		if i > 0 {
			b.WriteByte(',')
		}
		lens = append(lens, uint8(len(labels[i])))
	}
	b.WriteByte(')')

	p := cleanPath(normalizePath(path))
	p = strings.TrimSuffix(p, "/")
	b.WriteString(p)

	if hasQuery {
		writeQuery(&b, query)
	}

	return Surt{source: b.String(), labels: lens}, nil
}

// splitPort removes userinfo and a default port from authority.
func splitPort(scheme, authority string) (string, error) {
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		authority = authority[i+1:]
	}
	if strings.HasPrefix(authority, "[") {
		return "", fmt.Errorf("IP address host")
	}
	i := strings.LastIndexByte(authority, ':')
	if i < 0 {
		return authority, nil
	}
	host, port := authority[:i], authority[i+1:]
	if port == "" {
		return host, nil
	}
	for j := 0; j < len(port); j++ {
		if port[j] < '0' || port[j] > '9' {
			return "", fmt.Errorf("invalid port %q", port)
		}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n > 65535 {
		return "", fmt.Errorf("invalid port %q", port)
	}
	if n != defaultPorts[scheme] {
		return "", fmt.Errorf("explicit port %d", n)
	}
	return host, nil
}

// domainLabels maps host to ASCII and returns its labels in host order
// without a leading www.
func domainLabels(host string) ([]string, error) {
	host = formDecode(host, false)
	if host == "" {
		return nil, fmt.Errorf("empty host")
	}
	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", host, err)
	}
	ascii = strings.TrimSuffix(ascii, ".")

	labels := strings.Split(ascii, ".")
	if isNumericLabel(labels[len(labels)-1]) {
		return nil, fmt.Errorf("IP address host")
	}
	if labels[0] == "www" {
		labels = labels[1:]
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no domain labels in %q", host)
	}
	for _, label := range labels {
		if label == "" || len(label) > MaxLabelLen {
			return nil, fmt.Errorf("invalid domain label %q", label)
		}
		for i := 0; i < len(label); i++ {
			if !isLabelByte(label[i]) {
				return nil, fmt.Errorf("invalid domain label %q", label)
			}
		}
	}
	return labels, nil
}

func isNumericLabel(label string) bool {
	if strings.HasPrefix(label, "0x") {
		return true
	}
	if label == "" {
		return false
	}
	for i := 0; i < len(label); i++ {
		if label[i] < '0' || label[i] > '9' {
			return false
		}
	}
	return true
}

// normalizePath applies URL path parsing: backslashes become slashes, dot
// segments are resolved and bytes outside the path set are percent-encoded
// with uppercase hex.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	p = strings.ReplaceAll(p, `\`, "/")
	segs := strings.Split(p[1:], "/")
	out := make([]string, 0, len(segs))
	for i, seg := range segs {
		last := i == len(segs)-1
		switch seg {
		case ".", "%2e":
			if last {
				out = append(out, "")
			}
		case "..", ".%2e", "%2e.", "%2e%2e":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			if last {
				out = append(out, "")
			}
		default:
			out = append(out, escapePath(seg))
		}
	}
	return "/" + strings.Join(out, "/")
}

const upperHex = "0123456789ABCDEF"

func escapePath(seg string) string {
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		switch {
		case c < 0x20 || c > 0x7e, c == ' ', c == '"', c == '<', c == '>', c == '`', c == '{', c == '}':
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

var pathUnescaper = strings.NewReplacer(
	"%22", `"`,
	"%2a", "*",
	"%5c", `\`,
	"%3c", "<",
	"%3e", ">",
	"%27", "'",
	"%7b", "{",
	"%7d", "}",
	"\n", "%0a",
)

// cleanPath undoes the escapes the index leaves literal and collapses
// doubled slashes in one left-to-right pass.
func cleanPath(p string) string {
	return strings.ReplaceAll(pathUnescaper.Replace(p), "//", "/")
}

type queryPair struct {
	key, value string
}

func writeQuery(b *strings.Builder, query string) {
	var pairs []queryPair
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		pairs = append(pairs, queryPair{key: formDecode(key, true), value: formDecode(value, true)})
	}
	if len(pairs) == 0 {
		return
	}
	slices.SortStableFunc(pairs, func(a, b queryPair) int {
		return strings.Compare(a.key, b.key)
	})

	b.WriteByte('?')
	for i, pair := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(pair.key)
		if pair.value != "" {
			b.WriteByte('=')
			b.WriteString(queryValueEscaper.Replace(strings.ReplaceAll(pair.value, "+", "%20")))
		}
	}
}

var queryValueEscaper = strings.NewReplacer(
	" ", "+",
	"\n", "%0a",
	"%5e", "^",
)

// formDecode percent-decodes s, leaving malformed escapes as they are. When
// plus is set, '+' decodes to a space.
func formDecode(s string, plus bool) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '+' && plus:
			buf = append(buf, ' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			buf = append(buf, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
		default:
			buf = append(buf, c)
		}
	}
	if !utf8.Valid(buf) {
		return strings.ToValidUTF8(string(buf), "\uFFFD")
	}
	return string(buf)
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
