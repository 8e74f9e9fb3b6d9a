package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RuleKind groups expansion rules by how the search engine uses them.
type RuleKind string

const (
	// RuleSynonym replaces the matched word with a synonym.
	RuleSynonym RuleKind = "synonym"

	// RuleAcronym replaces an acronym with its expansion.
	RuleAcronym RuleKind = "acronym"

	// RuleContext appends related terms for a detected topic.
	RuleContext RuleKind = "context"

	// RuleTemporal appends concrete dates for relative time phrases.
	RuleTemporal RuleKind = "temporal"
)

// Rule is one entry of the query rewriting table: when Trigger matches the
// query, the match is replaced with Replace (synonym and acronym rules) or
// Append is added to the end of the query (context and temporal rules).
//
// Append may use the placeholders {year}, {last_year} and {next_year}.
type Rule struct {
	Kind    RuleKind
	Trigger *regexp.Regexp
	Replace string
	Append  string
}

// word builds a case-insensitive whole-word trigger.
func word(alternatives ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)\b`)
}

// Rules is the static rewriting table, evaluated in order.
var Rules = []Rule{
	{Kind: RuleSynonym, Trigger: word("trip"), Replace: "travel"},
	{Kind: RuleSynonym, Trigger: word("travel"), Replace: "trip"},
	{Kind: RuleSynonym, Trigger: word("vacation"), Replace: "holiday"},
	{Kind: RuleSynonym, Trigger: word("holiday"), Replace: "vacation"},
	{Kind: RuleSynonym, Trigger: word("hotel"), Replace: "accommodation"},
	{Kind: RuleSynonym, Trigger: word("meeting"), Replace: "call"},
	{Kind: RuleSynonym, Trigger: word("notes"), Replace: "minutes"},
	{Kind: RuleSynonym, Trigger: word("task"), Replace: "todo"},
	{Kind: RuleSynonym, Trigger: word("todo"), Replace: "task"},
	{Kind: RuleSynonym, Trigger: word("bug"), Replace: "issue"},
	{Kind: RuleSynonym, Trigger: word("issue"), Replace: "problem"},
	{Kind: RuleSynonym, Trigger: word("idea"), Replace: "concept"},
	{Kind: RuleSynonym, Trigger: word("plan"), Replace: "roadmap"},
	{Kind: RuleSynonym, Trigger: word("learn", "learning"), Replace: "study"},
	{Kind: RuleSynonym, Trigger: word("book"), Replace: "reading"},
	{Kind: RuleSynonym, Trigger: word("car"), Replace: "vehicle"},
	{Kind: RuleSynonym, Trigger: word("doctor"), Replace: "physician"},
	{Kind: RuleSynonym, Trigger: word("money"), Replace: "finance"},
	{Kind: RuleSynonym, Trigger: word("job"), Replace: "work"},

	{Kind: RuleAcronym, Trigger: word("ml"), Replace: "machine learning"},
	{Kind: RuleAcronym, Trigger: word("ai"), Replace: "artificial intelligence"},
	{Kind: RuleAcronym, Trigger: word("k8s"), Replace: "kubernetes"},
	{Kind: RuleAcronym, Trigger: word("db"), Replace: "database"},
	{Kind: RuleAcronym, Trigger: word("api"), Replace: "application programming interface"},
	{Kind: RuleAcronym, Trigger: word("pr"), Replace: "pull request"},
	{Kind: RuleAcronym, Trigger: word("okr", "okrs"), Replace: "objectives key results"},
	{Kind: RuleAcronym, Trigger: word("1:1", "1on1"), Replace: "one on one meeting"},

	{Kind: RuleContext, Trigger: word("flight", "flights", "airport"), Append: "travel airline booking"},
	{Kind: RuleContext, Trigger: word("hotel", "hotels", "airbnb"), Append: "accommodation stay booking"},
	{Kind: RuleContext, Trigger: word("recipe", "recipes", "cooking"), Append: "ingredients food"},
	{Kind: RuleContext, Trigger: word("budget", "expenses", "salary"), Append: "finance money costs"},
	{Kind: RuleContext, Trigger: word("workout", "gym", "running"), Append: "fitness exercise training"},
	{Kind: RuleContext, Trigger: word("deadline", "deadlines"), Append: "project schedule due date"},
	{Kind: RuleContext, Trigger: word("standup", "retro", "retrospective"), Append: "team meeting agile"},
	{Kind: RuleContext, Trigger: word("golang", "python", "rust"), Append: "programming code"},

	{Kind: RuleTemporal, Trigger: word("this year"), Append: "{year}"},
	{Kind: RuleTemporal, Trigger: word("last year"), Append: "{last_year}"},
	{Kind: RuleTemporal, Trigger: word("next year"), Append: "{next_year}"},
	{Kind: RuleTemporal, Trigger: word("spring"), Append: "march april may"},
	{Kind: RuleTemporal, Trigger: word("summer"), Append: "june july august"},
	{Kind: RuleTemporal, Trigger: word("autumn", "fall"), Append: "september october november"},
	{Kind: RuleTemporal, Trigger: word("winter"), Append: "december january february"},
}

// Apply evaluates r against query and returns the rewritten query, or false
// when the trigger does not match. Only the first match is replaced.
func (r Rule) Apply(query string, now time.Time) (string, bool) {
	loc := r.Trigger.FindStringIndex(query)
	if loc == nil {
		return "", false
	}
	if r.Replace != "" {
		return query[:loc[0]] + r.Replace + query[loc[1]:], true
	}

	year := now.Year()
	appended := strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{last_year}", strconv.Itoa(year-1),
		"{next_year}", strconv.Itoa(year+1),
	).Replace(r.Append)
	return query + " " + appended, true
}

// firstRule applies the first rule of kind that matches query.
func firstRule(rules []Rule, kind RuleKind, query string, now time.Time) (string, bool) {
	for _, r := range rules {
		if r.Kind != kind {
			continue
		}
		if out, ok := r.Apply(query, now); ok {
			return out, true
		}
	}
	return "", false
}

// allRules applies every rule of kind that matches query, each on its own.
func allRules(rules []Rule, kind RuleKind, query string, now time.Time) []string {
	var out []string
	for _, r := range rules {
		if r.Kind != kind {
			continue
		}
		if v, ok := r.Apply(query, now); ok {
			out = append(out, v)
		}
	}
	return out
}

// Domain is a query shape detected by Classify.
type Domain string

const (
	DomainTravel   Domain = "travel"
	DomainWork     Domain = "work"
	DomainLearning Domain = "learning"
	DomainMeeting  Domain = "meeting"
)

// DomainPattern maps a query shape to the expansion searched for it.
type DomainPattern struct {
	Domain    Domain
	Pattern   *regexp.Regexp
	Expansion string
}

// DomainPatterns is the complexity classifier table, evaluated in order.
var DomainPatterns = []DomainPattern{
	{
		Domain:    DomainTravel,
		Pattern:   word("trip", "travel", "travelling", "traveling", "vacation", "holiday", "flight", "hotel", "visit", "itinerary", "abroad"),
		Expansion: "booking accommodation flight hotel",
	},
	{
		Domain:    DomainWork,
		Pattern:   word("project", "projects", "deadline", "client", "sprint", "roadmap", "work", "task", "tasks", "report", "okr", "okrs"),
		Expansion: "project task deadline progress status",
	},
	{
		Domain:    DomainLearning,
		Pattern:   word("learn", "learning", "study", "studying", "course", "tutorial", "lecture", "book", "reading", "understand"),
		Expansion: "study notes concepts summary",
	},
	{
		Domain:    DomainMeeting,
		Pattern:   word("meeting", "meetings", "call", "standup", "retro", "agenda", "1:1", "sync", "interview"),
		Expansion: "agenda discussion action items decisions",
	},
}

// Classify returns every domain whose pattern matches query, in table order.
func Classify(query string) []Domain {
	var domains []Domain
	for _, p := range DomainPatterns {
		if p.Pattern.MatchString(query) {
			domains = append(domains, p.Domain)
		}
	}
	return domains
}

// stopWords are dropped when building the keyword variation.
var stopWords = map[string]bool{
	"a": true, "about": true, "all": true, "an": true, "and": true, "any": true, "are": true,
	"as": true, "at": true, "be": true, "by": true, "can": true, "did": true, "do": true,
	"does": true, "for": true, "from": true, "had": true, "has": true, "have": true, "how": true,
	"i": true, "in": true, "is": true, "it": true, "me": true, "my": true, "of": true, "on": true,
	"or": true, "our": true, "show": true, "that": true, "the": true, "there": true, "this": true,
	"to": true, "was": true, "we": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "who": true, "why": true, "with": true, "you": true, "your": true,
	"find": true, "tell": true,
}

// Keywords strips stop words and punctuation from query and joins the rest.
func Keywords(query string) string {
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, `.,;:!?"'()[]{}`)
		if w == "" || stopWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
