package safety

import (
	"fmt"
	"regexp"
)

// Rule maps a category name to a case-insensitive pattern.
type Rule struct {
	Category string
	Pattern  *regexp.Regexp
}

// DefaultRules are the keyword categories in evaluation order.
var DefaultRules = []Rule{
	{Category: "pregnancy", Pattern: regexp.MustCompile(`(?i)pregnan|maternity|trimester|birth`)},
	{Category: "surgery", Pattern: regexp.MustCompile(`(?i)surgery|operation|post-op|incision`)},
	{Category: "blood_pressure", Pattern: regexp.MustCompile(`(?i)blood pressure|hypertension|high bp`)},
	{Category: "glaucoma", Pattern: regexp.MustCompile(`(?i)glaucoma|eye pressure`)},
	{Category: "hernia", Pattern: regexp.MustCompile(`(?i)hernia|rupture`)},
	{Category: "medical_advice", Pattern: regexp.MustCompile(`(?i)cure|diagnosis|prescription|treat`)},
}

// MatchRules evaluates every rule against text and returns one reason per
// matching category, in rule order. It never stops early.
func MatchRules(rules []Rule, text string) []string {
	var reasons []string
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			reasons = append(reasons, fmt.Sprintf("Matched safety rule: %s", r.Category))
		}
	}
	return reasons
}
