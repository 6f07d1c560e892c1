package dialogue

import (
	"strconv"
	"strings"

	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/rules"
)

// Rupees formats an amount in Indian digit grouping: 250000 becomes ₹2,50,000 and
// 6434.41 becomes ₹6,434.41. Whole amounts carry no decimals.
func Rupees(v float64) string {
	v = rules.RoundMoney(v)
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}

	raw := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac, _ := strings.Cut(raw, ".")
	if frac == "00" {
		frac = ""
	}
	return sign + "₹" + groupIndian(whole) + withFraction(frac)
}

func withFraction(frac string) string {
	if frac == "" {
		return ""
	}
	return "." + frac
}

// groupIndian inserts separators after the thousands and then every two digits.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}

// Percent formats a rate without trailing zeros: 10.5 becomes "10.5%".
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// humanList joins items as "a, b and c".
func humanList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func humanFields(fields []domain.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Humanize())
	}
	return out
}

// fieldValue renders the current value of a requirement field.
func fieldValue(r *domain.ApplicationRecord, f domain.Field) string {
	switch f {
	case domain.FieldLoanAmount:
		return Rupees(domain.Deref(r.LoanAmount))
	case domain.FieldSalary:
		return Rupees(domain.Deref(r.Salary))
	case domain.FieldEmployment:
		return employmentLabel(r.EmploymentStatus)
	case domain.FieldCity:
		return r.City
	}
	return ""
}

func employmentLabel(e domain.Employment) string {
	switch e {
	case domain.EmploymentSalaried:
		return "salaried"
	case domain.EmploymentContract:
		return "contract"
	case domain.EmploymentSelfEmployed:
		return "self-employed"
	}
	return string(e)
}

// humanize turns a snake_case tag into words.
func humanize(tag string) string {
	return strings.ReplaceAll(tag, "_", " ")
}

// collected maps each provided requirement to its stored value for display payloads.
func collected(r *domain.ApplicationRecord) map[string]any {
	out := map[string]any{}
	for _, f := range r.CollectedRequirements() {
		switch f {
		case domain.FieldLoanAmount:
			out[string(f)] = domain.Deref(r.LoanAmount)
		case domain.FieldSalary:
			out[string(f)] = domain.Deref(r.Salary)
		case domain.FieldEmployment:
			out[string(f)] = string(r.EmploymentStatus)
		case domain.FieldCity:
			out[string(f)] = r.City
		}
	}
	return out
}

func fieldNames(fields []domain.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, string(f))
	}
	return out
}
