package symbols

import "strings"

// corporateSuffixes are trailing company-name tokens that carry no
// identity: "Apple Inc" and "Apple" must resolve the same way.
var corporateSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "corp": {}, "corporation": {},
	"co": {}, "company": {}, "ltd": {}, "limited": {}, "plc": {},
	"llc": {}, "lp": {}, "holdings": {}, "holding": {}, "group": {},
	"trust": {}, "sa": {}, "nv": {}, "ag": {}, "se": {},
	"adr": {}, "ads": {}, "class": {}, "cl": {},
	"common": {}, "stock": {}, "shares": {}, "etf": {},
}

// Normalize lowercases s, replaces every non-alphanumeric run with a
// single space, and trims. The resolver must normalize lookup text with
// this same function or alias lookups will miss.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripName removes a leading article and trailing corporate suffixes
// from an already-normalized name, leaving at least one token.
func stripName(normalized string) string {
	tokens := strings.Fields(normalized)
	if len(tokens) > 1 && tokens[0] == "the" {
		tokens = tokens[1:]
	}
	for len(tokens) > 1 {
		if _, ok := corporateSuffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// aliasSet derives the alias dictionary entries for one listing: the
// ticker itself, the normalized company name, the suffix-stripped name,
// and space-stripped variants of length >= 4. Pure stopwords and
// one-character leftovers never become aliases.
func aliasSet(ticker, companyName string) []string {
	seen := make(map[string]struct{}, 6)
	var out []string
	add := func(a string) {
		if len(a) < 2 || IsStopword(a) {
			return
		}
		if _, dup := seen[a]; dup {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}

	add(strings.ToLower(ticker))

	full := Normalize(companyName)
	stripped := stripName(full)
	add(full)
	add(stripped)

	for _, form := range []string{full, stripped} {
		joined := strings.ReplaceAll(form, " ", "")
		if len(joined) >= 4 && joined != form {
			add(joined)
		}
	}
	return out
}
