package postprocess

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Transform types applied to exported values. Each transform is pure; on any
// parse failure the input value is returned unchanged.
const (
	TypeYesNo          = "yes_no"
	TypeSplitFirst     = "split_first"
	TypeSplitSecond    = "split_second"
	TypeCalculateYears = "calculate_years"
	TypeDateFormat     = "date_format"
	TypeCurrencyFormat = "currency_format"
)

// Config parameterizes a transform
type Config struct {
	Separator  string `json:"separator,omitempty"`
	Format     string `json:"format,omitempty"`      // Go reference layout for date_format
	AnchorYear int    `json:"anchor_year,omitempty"` // calculate_years target (0 = current year)
}

// Apply runs the named transform on value. Unknown types and transform
// errors return the input unchanged.
func Apply(transformType, value string, cfg *Config) string {
	if transformType == "" || value == "" {
		return value
	}
	if cfg == nil {
		cfg = &Config{}
	}

	switch transformType {
	case TypeYesNo:
		return yesNo(value)
	case TypeSplitFirst:
		return splitFirst(value, cfg.Separator)
	case TypeSplitSecond:
		return splitSecond(value, cfg.Separator)
	case TypeCalculateYears:
		return calculateYears(value, cfg.AnchorYear)
	case TypeDateFormat:
		return dateFormat(value, cfg.Format)
	case TypeCurrencyFormat:
		return currencyFormat(value)
	default:
		return value
	}
}

func yesNo(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "y", "1", "x", "checked", "on":
		return "Y"
	case "false", "no", "n", "0", "", "unchecked", "off":
		return "N"
	default:
		return "Y"
	}
}

func splitFirst(value, separator string) string {
	if separator == "" {
		separator = " "
	}
	before, _, found := strings.Cut(value, separator)
	if !found {
		return value
	}
	return strings.TrimSpace(before)
}

func splitSecond(value, separator string) string {
	if separator == "" {
		separator = " "
	}
	_, after, found := strings.Cut(value, separator)
	if !found {
		return value
	}
	return strings.TrimSpace(after)
}

// dateLayouts are tried in order when reparsing an extracted date
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	"2 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"02.01.2006",
	time.RFC3339,
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func calculateYears(value string, anchorYear int) string {
	t, err := parseDate(value)
	if err != nil {
		return value
	}
	if anchorYear == 0 {
		anchorYear = time.Now().Year()
	}
	years := anchorYear - t.Year()
	if years < 0 {
		years = 0
	}
	return strconv.Itoa(years)
}

func dateFormat(value, layout string) string {
	if layout == "" {
		layout = "2006-01-02"
	}
	t, err := parseDate(value)
	if err != nil {
		return value
	}
	return t.Format(layout)
}

// currencyFormat strips currency symbols and thousand separators, returning
// a plain numeric string. "(1,234.50)" renders as "-1234.50".
func currencyFormat(value string) string {
	s := strings.TrimSpace(value)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if negative {
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-':
			negative = true
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return value
	}
	if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
		return value
	}
	if negative {
		return "-" + cleaned
	}
	return cleaned
}
