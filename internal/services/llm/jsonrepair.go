package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Repair strategies are applied at most once each, in order, only on parse
// failure. Each step builds on the previous steps' output.
var repairStrategies = []struct {
	name  string
	apply func(string) string
}{
	{"unicode_escapes", repairUnicodeEscapes},
	{"control_chars", repairControlChars},
	{"trailing_commas", repairTrailingCommas},
	{"unquoted_keys", repairUnquotedKeys},
	{"fenced_block", extractEmbeddedJSON},
	{"truncation", repairTruncation},
}

// RepairJSON validates the raw model output, running it through the repair
// strategies until it parses. Returns the repaired text, the names of the
// strategies applied, and whether a parseable result was reached.
func RepairJSON(raw string) (string, []string, bool) {
	candidate := strings.TrimSpace(raw)
	if json.Valid([]byte(candidate)) {
		return candidate, nil, true
	}

	var applied []string
	for _, strategy := range repairStrategies {
		candidate = strategy.apply(candidate)
		applied = append(applied, strategy.name)
		if json.Valid([]byte(candidate)) {
			return candidate, applied, true
		}
	}

	return candidate, applied, false
}

var badUnicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{0,3})([^0-9a-fA-F]|$)`)

// repairUnicodeEscapes neutralizes \u sequences not followed by four hex
// digits, which otherwise poison the whole decode.
func repairUnicodeEscapes(s string) string {
	return badUnicodeEscape.ReplaceAllString(s, `\\u$1$2`)
}

// repairControlChars escapes raw control characters that appear inside string
// literals. Models emit literal newlines inside values often enough that this
// runs early.
func repairControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if inString && r == '\\' {
			b.WriteRune(r)
			escaped = true
			continue
		}
		if r == '"' {
			inString = !inString
			b.WriteRune(r)
			continue
		}
		if inString && r < 0x20 {
			switch r {
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			default:
				b.WriteString(`\u` + strconv.FormatInt(int64(r), 16))
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

func repairTrailingCommas(s string) string {
	return trailingComma.ReplaceAllString(s, "$1")
}

var unquotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// repairUnquotedKeys quotes bare identifier keys. Only the unambiguous
// identifier-followed-by-colon pattern is touched.
func repairUnquotedKeys(s string) string {
	return unquotedKey.ReplaceAllString(s, `$1"$2":`)
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractEmbeddedJSON pulls the JSON body out of a fenced code block or, when
// no fence is present, the outermost brace pair. Models wrap JSON in prose
// despite response_format on some endpoints.
func extractEmbeddedJSON(s string) string {
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return s
	}
	return strings.TrimSpace(s[start : end+1])
}

// repairTruncation completes output cut off mid-stream by closing any open
// string and balancing open brackets. If the direct completion does not
// parse, it retries at successively earlier commas, dropping the partial
// trailing element each time.
func repairTruncation(s string) string {
	if fixed, ok := completeBalanced(s); ok {
		return fixed
	}

	work := s
	for i := 0; i < 32; i++ {
		cut := lastTopLevelComma(work)
		if cut < 0 {
			break
		}
		work = work[:cut]
		if fixed, ok := completeBalanced(work); ok {
			return fixed
		}
	}
	return s
}

// completeBalanced closes an open string literal and any unclosed brackets,
// reporting whether the result is valid JSON.
func completeBalanced(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return s, false
	}

	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		s += `"`
	}
	s = strings.TrimRight(s, " \t\n\r")
	s = strings.TrimSuffix(s, ",")
	s = strings.TrimRight(s, " \t\n\r")
	if strings.HasSuffix(s, ":") {
		s += "null"
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}

	return s, json.Valid([]byte(s))
}

// lastTopLevelComma finds the last comma outside any string literal
func lastTopLevelComma(s string) int {
	inString := false
	escaped := false
	last := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',':
			last = i
		}
	}
	return last
}
