// Package textnorm canonicalises counterparty names and tax identifiers as
// they appear in bank exports.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TaxIDLength is the length of an organisation or personal tax identifier (БИН/ИИН).
const TaxIDLength = 12

// wrappedWords are legal-form words that bank exports split across lines.
// SanitizeName re-joins two adjacent tokens when together they spell one of these.
var wrappedWords = map[string]bool{
	"товарищество":     true,
	"ограниченной":     true,
	"ответственностью": true,
	"индивидуальный":   true,
	"предприниматель":  true,
	"акционерное":      true,
	"общество":         true,
	"учреждение":       true,
	"государственное":  true,
	"коммунальное":     true,
	"предприятие":      true,
	"некоммерческое":   true,
	"крестьянское":     true,
	"хозяйство":        true,
}

// legalForms are abbreviations dropped by ComparableForm and upper-cased by TitleCase
// when they lead a name.
var legalForms = map[string]bool{
	"тоо": true, "ип": true, "ао": true, "оао": true, "зао": true,
	"пао": true, "ооо": true, "чп": true, "кх": true, "гу": true, "гкп": true,
	"ргп": true, "too": true, "ip": true, "ao": true, "llp": true, "llc": true,
	"ltd": true, "jsc": true,
}

// legalPhrases are spelled-out legal forms dropped by ComparableForm.
var legalPhrases = []string{
	"товарищество с ограниченной ответственностью",
	"общество с ограниченной ответственностью",
	"индивидуальный предприниматель",
	"акционерное общество",
	"крестьянское хозяйство",
	"limited liability partnership",
}

var taxIDPattern = regexp.MustCompile(`(?:^|\D)(\d{12})(?:\D|$)`)

var quoteReplacer = strings.NewReplacer(
	`"`, " ", "'", " ", "`", " ",
	"«", " ", "»", " ", "„", " ", "“", " ", "”", " ", "‘", " ", "’", " ",
)

// SanitizeName undoes bank export line wrapping: line breaks and stray
// slashes become spaces, whitespace is collapsed and legal-form words split
// across a wrap point are re-joined. SanitizeName is idempotent.
func SanitizeName(raw string) string {
	var tokens []string
	for _, tok := range strings.Fields(raw) {
		tok = joinSlashWrap(strings.Trim(tok, "/"))
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if i+1 < len(tokens) {
			head := strings.TrimSuffix(tokens[i], "-")
			if head != "" && wrappedWords[strings.ToLower(head+tokens[i+1])] {
				out = append(out, head+tokens[i+1])
				i++
				continue
			}
		}
		out = append(out, tokens[i])
	}
	return strings.Join(out, " ")
}

// joinSlashWrap re-joins a legal-form word that a wrap split with an inner
// slash ("Товарище/ство"). Other slashes in the token are left alone.
func joinSlashWrap(tok string) string {
	if !strings.Contains(tok, "/") {
		return tok
	}
	pieces := strings.Split(tok, "/")
	out := make([]string, 0, len(pieces))
	for i := 0; i < len(pieces); i++ {
		if i+1 < len(pieces) {
			head := strings.TrimSuffix(pieces[i], "-")
			if head != "" && wrappedWords[strings.ToLower(head+pieces[i+1])] {
				out = append(out, head+pieces[i+1])
				i++
				continue
			}
		}
		out = append(out, pieces[i])
	}
	return strings.Join(out, "/")
}

// ExtractTaxID returns the first standalone 12-digit run in text, or "".
// Runs that are part of a longer number do not match.
func ExtractTaxID(text string) string {
	if m := taxIDPattern.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return ""
}

// ComparableForm reduces a name to the form used for equality and similarity
// checks: lower case, no quotes, ё folded to е, legal forms removed, only
// letters and digits separated by single spaces. Never use it for display.
func ComparableForm(s string) string {
	s = strings.ToLower(SanitizeName(s))
	s = strings.ReplaceAll(s, "ё", "е")
	s = quoteReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	s = " " + strings.Join(strings.Fields(s), " ") + " "
	for _, phrase := range legalPhrases {
		s = strings.ReplaceAll(s, " "+phrase+" ", " ")
	}

	var kept []string
	for _, tok := range strings.Fields(s) {
		if !legalForms[tok] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// TitleCase renders a bank-supplied name for display. A leading legal-form
// abbreviation is upper-cased, short all-caps tokens are kept as acronyms and
// every other word is capitalised.
func TitleCase(raw string) string {
	tokens := strings.Fields(SanitizeName(raw))
	caser := cases.Title(language.Russian)
	for i, tok := range tokens {
		switch {
		case i == 0 && legalForms[strings.ToLower(strings.Trim(tok, `"«»“”'`))]:
			tokens[i] = strings.ToUpper(tok)
		case isAcronym(tok):
		default:
			tokens[i] = caser.String(tok)
		}
	}
	return strings.Join(tokens, " ")
}

// isAcronym reports whether tok has between one and five letters, all upper case.
func isAcronym(tok string) bool {
	letters := 0
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters > 0 && letters <= 5
}
