package symbols

import "strings"

// stopwords is the hard blacklist of ticker-shaped tokens that are
// really common words, acronyms, country codes, or agency names. A
// token on this list never becomes a resolution candidate and never
// enters the alias dictionary on its own.
var stopwords = map[string]struct{}{
	// Short function words.
	"A": {}, "I": {}, "AN": {}, "AS": {}, "AT": {}, "BE": {}, "BY": {},
	"DO": {}, "GO": {}, "HE": {}, "IF": {}, "IN": {}, "IS": {}, "IT": {},
	"ME": {}, "MY": {}, "NO": {}, "OF": {}, "ON": {}, "OR": {}, "SO": {},
	"TO": {}, "UP": {}, "WE": {},
	"ALL": {}, "AND": {}, "ANY": {}, "ARE": {}, "BIG": {}, "BUT": {},
	"CAN": {}, "DAY": {}, "FOR": {}, "GET": {}, "HAS": {}, "HER": {},
	"HIM": {}, "HIS": {}, "HOW": {}, "ITS": {}, "LOW": {}, "MAN": {},
	"NEW": {}, "NOT": {}, "NOW": {}, "OLD": {}, "ONE": {}, "OUT": {},
	"OWN": {}, "SEE": {}, "SHE": {}, "THE": {}, "TOP": {}, "TWO": {},
	"WAS": {}, "WAY": {}, "WHO": {}, "YOU": {},

	// Countries, regions, currencies.
	"US": {}, "UK": {}, "EU": {}, "UN": {}, "USA": {},
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CNY": {},

	// Agencies and institutions.
	"SEC": {}, "IRS": {}, "FBI": {}, "CIA": {}, "DOJ": {}, "FTC": {},
	"FDA": {}, "EPA": {}, "FED": {}, "IMF": {}, "WTO": {}, "OPEC": {},
	"NATO": {}, "NYSE": {}, "AMEX": {},

	// Finance and business acronyms.
	"CEO": {}, "CFO": {}, "COO": {}, "CTO": {}, "CPI": {}, "GDP": {},
	"EPS": {}, "ETF": {}, "IPO": {}, "YOY": {}, "GAAP": {},
	"AI": {}, "EV": {}, "PC": {}, "TV": {}, "PR": {}, "HR": {},
	"VP": {}, "AM": {}, "PM": {}, "ID": {}, "OK": {},
}

// IsStopword reports whether token is blacklisted, case-insensitively.
func IsStopword(token string) bool {
	_, ok := stopwords[strings.ToUpper(token)]
	return ok
}
