package classify

import "regexp"

var (
	// numberPattern matches integers, clock times (13:30) and decimals (4.2)
	numberPattern = regexp.MustCompile(`\b\d+(?::\d{2})?(?:\.\d+)?\b`)

	// timeOrUnitPattern matches a number optionally followed by a duty unit
	timeOrUnitPattern = regexp.MustCompile(`(?i)\b\d+(?::\d{2})?(?:\.\d+)?\s*(?:hours?|hrs?|days?|landings?|sectors?|minutes?|mins?|kg|auw)?\b`)
)

// regulatoryTerms signal an enforceable or operational rule
var regulatoryTerms = []string{
	"shall",
	"must",
	"required",
	"limit",
	"maximum",
	"minimum",
	"rest",
	"flight",
	"duty",
	"crew",
	"operator",
	"standby",
	"landing",
	"applicable",
	"applicability",
	"fdtl",
	"dgca",
	"not exceed",
}

// scopeTerms signal who or what a rule applies to
var scopeTerms = []string{
	"applicable",
	"applicability",
	"all operators",
	"scheduled",
	"non-scheduled",
	"general aviation",
	"private",
	"public sector",
	"state governments",
	"except",
	"only",
}

// opsNumericTerms give a number operational meaning
var opsNumericTerms = []string{
	"flight time",
	"flight duty",
	"fdp",
	"rest",
	"standby",
	"weekly rest",
	"landings",
	"sectors",
	"wocl",
	"applicable",
	"auw",
	"maximum",
	"minimum",
	"not exceed",
}

// noisePhrases mark document boilerplate
var noisePhrases = []string{
	"table of contents",
	"page",
	"issue",
	"dated",
	"effective",
	"dgca - car",
	"car -",
}

// crossReferenceWords suggest a decimal token is a paragraph reference
var crossReferenceWords = []string{"para", "sub para", "section", "table"}

// obligationTerms raise a requirement change to CRITICAL
var obligationTerms = []string{"shall not", "must", "not exceed", "maximum", "minimum"}
