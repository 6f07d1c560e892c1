package extract

import (
	"regexp"
	"strings"

	"github.com/aretw0/lendflow/pkg/domain"
)

// City is a gazetteer entry: a canonical name and the spellings that map to it.
type City struct {
	Name    string
	Aliases []string
}

// Gazetteer lists the cities the extractor recognizes. Order matters: the first entry that
// matches a message wins.
var Gazetteer = []City{
	{Name: "Mumbai", Aliases: []string{"mumbai", "bombay"}},
	{Name: "Delhi", Aliases: []string{"delhi", "new delhi"}},
	{Name: "Bengaluru", Aliases: []string{"bengaluru", "bangalore"}},
	{Name: "Hyderabad", Aliases: []string{"hyderabad"}},
	{Name: "Chennai", Aliases: []string{"chennai", "madras"}},
	{Name: "Kolkata", Aliases: []string{"kolkata", "calcutta"}},
	{Name: "Pune", Aliases: []string{"pune"}},
	{Name: "Ahmedabad", Aliases: []string{"ahmedabad"}},
	{Name: "Jaipur", Aliases: []string{"jaipur"}},
	{Name: "Surat", Aliases: []string{"surat"}},
	{Name: "Lucknow", Aliases: []string{"lucknow"}},
	{Name: "Kanpur", Aliases: []string{"kanpur"}},
	{Name: "Nagpur", Aliases: []string{"nagpur"}},
	{Name: "Indore", Aliases: []string{"indore"}},
	{Name: "Thane", Aliases: []string{"thane"}},
	{Name: "Bhopal", Aliases: []string{"bhopal"}},
	{Name: "Visakhapatnam", Aliases: []string{"visakhapatnam", "vizag"}},
	{Name: "Patna", Aliases: []string{"patna"}},
	{Name: "Vadodara", Aliases: []string{"vadodara", "baroda"}},
	{Name: "Ghaziabad", Aliases: []string{"ghaziabad"}},
	{Name: "Ludhiana", Aliases: []string{"ludhiana"}},
	{Name: "Agra", Aliases: []string{"agra"}},
	{Name: "Nashik", Aliases: []string{"nashik"}},
	{Name: "Faridabad", Aliases: []string{"faridabad"}},
	{Name: "Rajkot", Aliases: []string{"rajkot"}},
	{Name: "Varanasi", Aliases: []string{"varanasi", "benaras"}},
	{Name: "Amritsar", Aliases: []string{"amritsar"}},
	{Name: "Noida", Aliases: []string{"noida"}},
	{Name: "Gurugram", Aliases: []string{"gurugram", "gurgaon"}},
	{Name: "Chandigarh", Aliases: []string{"chandigarh"}},
	{Name: "Coimbatore", Aliases: []string{"coimbatore"}},
	{Name: "Kochi", Aliases: []string{"kochi", "cochin"}},
	{Name: "Thiruvananthapuram", Aliases: []string{"thiruvananthapuram", "trivandrum"}},
	{Name: "Mysuru", Aliases: []string{"mysuru", "mysore"}},
	{Name: "Guwahati", Aliases: []string{"guwahati"}},
	{Name: "Bhubaneswar", Aliases: []string{"bhubaneswar"}},
	{Name: "Dehradun", Aliases: []string{"dehradun"}},
	{Name: "Madurai", Aliases: []string{"madurai"}},
	{Name: "Mangaluru", Aliases: []string{"mangaluru", "mangalore"}},
	{Name: "Ranchi", Aliases: []string{"ranchi"}},
}

var cityPatterns = compileGazetteer(Gazetteer)

func compileGazetteer(cities []City) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(cities))
	for i, c := range cities {
		quoted := make([]string, len(c.Aliases))
		for j, a := range c.Aliases {
			quoted[j] = regexp.QuoteMeta(a)
		}
		out[i] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return out
}

// MatchCity returns the canonical name of the first gazetteer city found in message.
func MatchCity(message string) (string, bool) {
	for i, re := range cityPatterns {
		if re.MatchString(message) {
			return Gazetteer[i].Name, true
		}
	}
	return "", false
}

type employmentRule struct {
	status  domain.Employment
	pattern *regexp.Regexp
}

// employmentRules are checked in order so that "self-employed" never reads as "employed".
var employmentRules = []employmentRule{
	{
		status:  domain.EmploymentSelfEmployed,
		pattern: regexp.MustCompile(`(?i)\b(self[\s-]?employed|business\s?(?:owner|man|woman)?|own (?:a )?business|entrepreneur|proprietor|freelanc\w*|consultant)\b`),
	},
	{
		status:  domain.EmploymentContract,
		pattern: regexp.MustCompile(`(?i)\b(contract(?:ual|or)?|temporary|temp job)\b`),
	},
	{
		status:  domain.EmploymentSalaried,
		pattern: regexp.MustCompile(`(?i)\b(salaried|employed|employee|job|full[\s-]?time|permanent|working (?:at|for|in))\b`),
	},
}

// MatchEmployment returns the first employment category whose keywords appear in message.
func MatchEmployment(message string) (domain.Employment, bool) {
	for _, r := range employmentRules {
		if r.pattern.MatchString(message) {
			return r.status, true
		}
	}
	return "", false
}
