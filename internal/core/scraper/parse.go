package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var decimalComma = regexp.MustCompile(`,\d{1,2}$`)

// ParsePrice reads Indonesian-style amounts such as "Rp 12.500", "12,500"
// or "12.500,50". Dots and commas are thousands separators unless a comma
// is followed by one or two trailing digits.
func ParsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Rp."), "Rp")
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\t' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/kg"), "/liter")

	if decimalComma.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseFloat reads a plain decimal value (weather readings), accepting a comma decimal separator.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var (
	dayMonthYear = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})`)
	digitsOnly   = regexp.MustCompile(`^\d+$`)
)

var monthNames = map[string]string{
	"januari": "January", "jan": "January",
	"februari": "February", "feb": "February", "pebruari": "February",
	"maret": "March", "mar": "March",
	"april": "April", "apr": "April",
	"mei": "May",
	"juni": "June", "jun": "June",
	"juli": "July", "jul": "July",
	"agustus": "August", "agu": "August", "agt": "August",
	"september": "September", "sep": "September", "sept": "September",
	"oktober": "October", "okt": "October",
	"november": "November", "nov": "November", "nop": "November",
	"desember": "December", "des": "December",
}

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006-01",
}

var namedLayouts = []string{
	"2 January 2006",
	"January 2, 2006",
	"January 2 2006",
	"January 2006",
}

// ParseDate understands the date shapes seen across the upstream feeds.
// Values without a zone are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := dayMonthYear.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if mo < 1 || mo > 12 || d < 1 || d > 31 {
			return time.Time{}, false
		}
		t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		if t.Day() != d {
			return time.Time{}, false
		}
		return t, true
	}

	if digitsOnly.MatchString(s) {
		return parseCompact(s)
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	named := translateMonths(s)
	for _, layout := range namedLayouts {
		if t, err := time.Parse(layout, named); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseCompact handles BMKG timestamps (200601021504), yyyymmdd and bare years.
func parseCompact(s string) (time.Time, bool) {
	var layout string
	switch len(s) {
	case 12:
		layout = "200601021504"
	case 14:
		layout = "20060102150405"
	case 8:
		layout = "20060102"
	case 6:
		layout = "200601"
	case 4:
		y, _ := strconv.Atoi(s)
		if y < 1900 || y > 2100 {
			return time.Time{}, false
		}
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), true
	default:
		return time.Time{}, false
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func translateMonths(s string) string {
	fields := strings.Fields(strings.ReplaceAll(s, ".", " "))
	for i, f := range fields {
		key := strings.ToLower(strings.TrimSuffix(f, ","))
		if en, ok := monthNames[key]; ok {
			if strings.HasSuffix(f, ",") {
				en += ","
			}
			fields[i] = en
		}
	}
	return strings.Join(fields, " ")
}
