// Package normalizer provides the pure field-normalization functions of the
// import pipeline: canonical comparison keys for category and tag names,
// transaction-type resolution from free text, locale-aware amount parsing, and
// date reshaping to ISO 8601. Every function is total; failures are reported
// through ok-flags, never through errors or panics, so row processing can
// degrade gracefully on malformed cells.
package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TransactionType is the closed polarity enum. After normalization polarity
// lives exclusively here, never in the amount's sign.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Type vocabulary, matched case-insensitively as substrings. Kept as data so
// new locales extend the tables instead of growing conditionals.
var (
	incomeKeywords  = []string{"RECEITA", "INCOME", "ENTRADA", "GANHO"}
	expenseKeywords = []string{"DESPESA", "EXPENSE", "SAÍDA", "SAIDA", "GASTO"}
)

// typeMatcher holds one Aho-Corasick automaton over both vocabularies plus a
// parallel polarity table indexed by pattern position.
var typeMatcher = buildTypeMatcher()

type vocabularyMatcher struct {
	matcher    *ahocorasick.Matcher
	polarities []TransactionType
}

func buildTypeMatcher() *vocabularyMatcher {
	patterns := make([][]byte, 0, len(incomeKeywords)+len(expenseKeywords))
	polarities := make([]TransactionType, 0, cap(patterns))

	for _, kw := range incomeKeywords {
		patterns = append(patterns, []byte(kw))
		polarities = append(polarities, TypeIncome)
	}
	for _, kw := range expenseKeywords {
		patterns = append(patterns, []byte(kw))
		polarities = append(polarities, TypeExpense)
	}

	return &vocabularyMatcher{
		matcher:    ahocorasick.NewMatcher(patterns),
		polarities: polarities,
	}
}

// NormalizeType resolves a free-text type label to a polarity. Returns false
// when neither vocabulary matches; callers then infer polarity from the raw
// amount's sign.
func NormalizeType(text string) (TransactionType, bool) {
	upper := strings.ToUpper(strings.TrimSpace(text))
	if upper == "" {
		return "", false
	}

	matches := typeMatcher.matcher.Match([]byte(upper))
	if len(matches) == 0 {
		return "", false
	}

	// Lowest pattern index wins so the income vocabulary takes precedence on
	// the (pathological) label matching both tables.
	best := matches[0]
	for _, idx := range matches[1:] {
		if idx < best {
			best = idx
		}
	}
	return typeMatcher.polarities[best], true
}

// accentStripper decomposes to NFD, drops combining marks, and recomposes.
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey produces the canonical comparison key for a category or tag
// name: lowercase, accents stripped, runs of non-alphanumeric characters
// collapsed to single spaces, trimmed. The transform is deterministic and
// idempotent, so two raw names with the same key denote the same entity.
func NormalizeKey(text string) string {
	stripped, _, err := transform.String(accentStripper, text)
	if err != nil {
		stripped = text
	}

	lower := strings.ToLower(stripped)
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, lower)

	return strings.Join(strings.Fields(mapped), " ")
}

// Currency markers stripped before numeric parsing. Longer symbols first so
// "R$" is not half-consumed by "$".
var currencyMarkers = []string{"R$", "US$", "USD", "EUR", "GBP", "BRL", "$", "€", "£"}

// ParseAmount parses a raw currency cell into a signed decimal. The sign is
// preserved here; the row parser is the one that strips it after deciding
// polarity. When decimalSep is ',' a '.' is treated as a thousands separator.
// Returns false on anything non-numeric.
func ParseAmount(text string, decimalSep rune) (decimal.Decimal, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, false
	}

	for _, marker := range currencyMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	// Accounting negatives: (123.45) means -123.45.
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}

	if decimalSep == ',' {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// The four recognized date shapes. Anything else passes through untouched and
// is left for the validator to flag.
var (
	reISODate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reSlashDMY    = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	reDashDMY     = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})$`)
	reSlashYMD    = regexp.MustCompile(`^(\d{4})/(\d{2})/(\d{2})$`)
)

// FormatDate rewrites DD/MM/YYYY, DD-MM-YYYY and YYYY/MM/DD into YYYY-MM-DD.
// ISO input is returned as-is, which also makes the function idempotent.
// Unrecognized shapes are returned unchanged rather than rejected.
func FormatDate(text string) string {
	s := strings.TrimSpace(text)

	switch {
	case reISODate.MatchString(s):
		return s
	case reSlashDMY.MatchString(s):
		m := reSlashDMY.FindStringSubmatch(s)
		return m[3] + "-" + m[2] + "-" + m[1]
	case reDashDMY.MatchString(s):
		m := reDashDMY.FindStringSubmatch(s)
		return m[3] + "-" + m[2] + "-" + m[1]
	case reSlashYMD.MatchString(s):
		m := reSlashYMD.FindStringSubmatch(s)
		return m[1] + "-" + m[2] + "-" + m[3]
	default:
		return text
	}
}
