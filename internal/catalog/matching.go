package catalog

import (
	"encoding/json"
	"slices"
	"strings"
	"unicode"
)

// Matches reports whether the rule applies to a carrier exception signal.
func (r ExceptionRule) Matches(signal string, rawPayload []byte) bool {
	_, ok := r.Match(signal, rawPayload)
	return ok
}

// Match reports whether the rule applies and returns the text it matched.
//
// CODE rules compare case-insensitively against the whole signal or any of its
// alphanumeric tokens ("WX - weather delay" carries the token "WX"). KEYWORD rules
// look for a case-insensitive substring in the signal or, failing that, in the
// string values of the raw carrier payload. Object keys are never searched. A
// payload that is not JSON is searched as plain text.
func (r ExceptionRule) Match(signal string, rawPayload []byte) (string, bool) {
	value := strings.TrimSpace(r.MatchValue)
	if value == "" {
		return "", false
	}
	signal = strings.TrimSpace(signal)
	switch r.MatchType {
	case MatchCode:
		if signal == "" {
			return "", false
		}
		if strings.EqualFold(signal, value) {
			return signal, true
		}
		for _, tok := range Tokens(signal) {
			if strings.EqualFold(tok, value) {
				return signal, true
			}
		}
		return "", false
	case MatchKeyword:
		needle := strings.ToUpper(value)
		if strings.Contains(strings.ToUpper(signal), needle) {
			return signal, true
		}
		for _, text := range payloadText(rawPayload) {
			if strings.Contains(strings.ToUpper(text), needle) {
				return strings.TrimSpace(text), true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// payloadText returns the string values of a JSON payload, objects visited in key
// order, or the whole payload when it is not JSON.
func payloadText(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return []string{string(raw)}
	}
	var out []string
	collectStrings(doc, &out)
	return out
}

func collectStrings(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		*out = append(*out, t)
	case []any:
		for _, e := range t {
			collectStrings(e, out)
		}
	case map[string]any:
		// sorted keys keep the matched text stable across audits
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			collectStrings(t[k], out)
		}
	}
}

// Tokens splits a signal on anything that is not a letter, digit or underscore.
func Tokens(signal string) []string {
	return strings.FieldsFunc(signal, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
