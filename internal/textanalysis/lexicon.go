package textanalysis

// suspiciousKeywords are matched case-insensitively anywhere in the text
var suspiciousKeywords = []string{
	"fake",
	"scam",
	"fraud",
	"click here",
	"buy now",
	"free money",
	"earn money",
	"promo code",
	"discount code",
	"guaranteed",
	"whatsapp me",
	"call me on",
	"visit my",
	"http://",
	"https://",
	"www.",
}

var positiveWords = map[string]struct{}{
	"excellent":    {},
	"great":        {},
	"good":         {},
	"amazing":      {},
	"outstanding":  {},
	"professional": {},
	"recommended":  {},
	"reliable":     {},
	"perfect":      {},
	"satisfied":    {},
}

var negativeWords = map[string]struct{}{
	"bad":            {},
	"terrible":       {},
	"poor":           {},
	"awful":          {},
	"horrible":       {},
	"unprofessional": {},
	"late":           {},
	"rude":           {},
	"disappointed":   {},
	"worst":          {},
}
