package daikin

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Values holds the raw key/value pairs reported by an AirBase adapter.
// Values are stored as received, still percent-encoded.
type Values map[string]string

var pairPattern = regexp.MustCompile(`(\w+)=([^=]*)(?:,|$)`)

// ParseResponse decodes a "ret=OK,key=value,..." body.
func ParseResponse(body string) (Values, error) {
	out := make(Values)
	for _, m := range pairPattern.FindAllStringSubmatch(strings.TrimSpace(body), -1) {
		out[m[1]] = m[2]
	}
	ret, ok := out["ret"]
	if !ok {
		return nil, fmt.Errorf("missing ret field in response %q", body)
	}
	if ret != "OK" {
		return nil, fmt.Errorf("adapter returned ret=%s", ret)
	}
	delete(out, "ret")
	return out, nil
}

// Get returns the decoded value of key.
func (v Values) Get(key string) (string, bool) {
	raw, ok := v[key]
	if !ok {
		return "", false
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw, true
	}
	return decoded, true
}

// List returns the ";"-separated elements of key after decoding.
func (v Values) List(key string) []string {
	s, ok := v.Get(key)
	if !ok || s == "" {
		return nil
	}
	return strings.Split(s, ";")
}

// Merge copies other into v.
func (v Values) Merge(other Values) {
	for k, val := range other {
		v[k] = val
	}
}

// Clone returns a copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	out.Merge(v)
	return out
}

// Decoded returns every value decoded, for display.
func (v Values) Decoded() map[string]string {
	out := make(map[string]string, len(v))
	for k := range v {
		out[k], _ = v.Get(k)
	}
	return out
}

// encodeList joins items with ";" and percent-encodes the result with
// lower-case hex digits, the form set_zone_setting accepts.
func encodeList(items []string) string {
	return lowerEscapes(quote(strings.Join(items, ";")))
}

func quote(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~/", c) >= 0
}

func lowerEscapes(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] == '%' && i+2 < len(b) {
			b[i+1] = toLowerHex(b[i+1])
			b[i+2] = toLowerHex(b[i+2])
			i += 2
		}
	}
	return string(b)
}

func toLowerHex(c byte) byte {
	if 'A' <= c && c <= 'F' {
		return c + ('a' - 'A')
	}
	return c
}
