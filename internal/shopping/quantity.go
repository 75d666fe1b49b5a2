package shopping

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	decimalRe  = regexp.MustCompile(`^(\d+(?:\.\d+)?|\.\d+)$`)
	fractionRe = regexp.MustCompile(`^(\d+)/(\d+)$`)
	mixedRe    = regexp.MustCompile(`^(\d+)[\s-]+(\d+)/(\d+)$`)
)

var vulgarFractions = map[string]string{
	"½": "1/2", "⅓": "1/3", "⅔": "2/3", "¼": "1/4", "¾": "3/4", "⅛": "1/8",
}

// ParseQuantity reads integers, decimals, fractions ("1/2") and mixed
// numbers ("1 1/2"). Anything else reports false.
func ParseQuantity(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	for sym, frac := range vulgarFractions {
		if strings.Contains(s, sym) {
			s = strings.TrimSpace(strings.Replace(s, sym, " "+frac, 1))
		}
	}
	if s == "" {
		return 0, false
	}

	if decimalRe.MatchString(s) {
		v, err := strconv.ParseFloat(s, 64)
		return v, err == nil
	}
	if m := fractionRe.FindStringSubmatch(s); m != nil {
		return ratio(m[1], m[2])
	}
	if m := mixedRe.FindStringSubmatch(s); m != nil {
		whole, _ := strconv.Atoi(m[1])
		frac, ok := ratio(m[2], m[3])
		if !ok {
			return 0, false
		}
		return float64(whole) + frac, true
	}
	return 0, false
}

func ratio(num, den string) (float64, bool) {
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || d == 0 {
		return 0, false
	}
	return float64(n) / float64(d), true
}

// FormatQuantity renders v with at most two decimals and no trailing zeros.
func FormatQuantity(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// ScaleQuantity multiplies a numeric quantity by factor. Non-numeric text is
// returned unchanged.
func ScaleQuantity(q string, factor float64) string {
	v, ok := ParseQuantity(q)
	if !ok {
		return q
	}
	return FormatQuantity(v * factor)
}

// amount accumulates quantities for one merged item: numeric parts are
// summed, distinct text parts are kept in order of appearance.
type amount struct {
	total    float64
	hasTotal bool
	texts    []string
}

func (a *amount) add(q string) {
	for _, part := range strings.Split(q, " + ") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, ok := ParseQuantity(part); ok {
			a.total += v
			a.hasTotal = true
			continue
		}
		dup := false
		for _, t := range a.texts {
			if strings.EqualFold(t, part) {
				dup = true
				break
			}
		}
		if !dup {
			a.texts = append(a.texts, part)
		}
	}
}

func (a amount) String() string {
	parts := make([]string, 0, len(a.texts)+1)
	if a.hasTotal {
		parts = append(parts, FormatQuantity(a.total))
	}
	parts = append(parts, a.texts...)
	return strings.Join(parts, " + ")
}

// MergeQuantities combines two quantities of the same ingredient and unit.
func MergeQuantities(a, b string) string {
	var acc amount
	acc.add(a)
	acc.add(b)
	return acc.String()
}
