package extract

import (
	"strings"

	"github.com/aretw0/lendflow/pkg/domain"
)

// Extract parses the loan requirements found in message. Fields already set on record are
// never returned, so merging the result cannot overwrite customer data. An unparseable
// message yields empty Fields.
//
// The first amount is the loan amount unless it is already known; a later amount, or one
// qualified by an income keyword, is the monthly salary. Annual figures are divided by 12.
func Extract(message string, record *domain.ApplicationRecord) domain.Fields {
	if record == nil {
		record = &domain.ApplicationRecord{}
	}
	_, text := ExtractContact(message)
	lower := strings.ToLower(text)

	var f domain.Fields
	loanTaken := record.LoanAmount != nil
	salaryTaken := record.Salary != nil

	amounts := Amounts(text)
	for i, a := range amounts {
		q := qualify(lower, amounts, i)
		v := a.Value
		if q.annual {
			v = monthly(v)
		}

		if q.salary || q.annual || loanTaken {
			if !salaryTaken {
				f.Salary = &v
				salaryTaken = true
			}
			continue
		}
		f.LoanAmount = &v
		loanTaken = true
	}

	if record.EmploymentStatus == "" {
		if e, ok := MatchEmployment(text); ok {
			f.EmploymentStatus = e
		}
	}
	if record.City == "" {
		if c, ok := MatchCity(text); ok {
			f.City = c
		}
	}
	return f
}

// ExtractChanges parses the fields a customer asks to change. Amounts are targeted by the
// keyword before them; an amount with no keyword goes to the salary when the message talks
// about income, otherwise to the loan amount.
func ExtractChanges(message string) domain.Fields {
	_, text := ExtractContact(message)
	lower := strings.ToLower(text)
	mentionsIncome := salaryBefore.MatchString(lower) || annualBefore.MatchString(lower)

	var f domain.Fields
	amounts := Amounts(text)
	for i, a := range amounts {
		q := qualify(lower, amounts, i)
		v := a.Value
		if q.annual {
			v = monthly(v)
		}

		toSalary := q.salary || q.annual
		if !toSalary && !q.loan {
			toSalary = mentionsIncome
		}

		switch {
		case toSalary && f.Salary == nil:
			f.Salary = &v
		case !toSalary && f.LoanAmount == nil:
			f.LoanAmount = &v
		}
	}

	if e, ok := MatchEmployment(text); ok {
		f.EmploymentStatus = e
	}
	if c, ok := MatchCity(text); ok {
		f.City = c
	}
	return f
}

type qualifier struct {
	salary bool
	annual bool
	loan   bool
}

// qualify inspects the keywords surrounding amounts[i].
func qualify(lower string, amounts []Amount, i int) qualifier {
	a := amounts[i]
	prevEnd, nextStart := 0, len(lower)
	if i > 0 {
		prevEnd = amounts[i-1].End
	}
	if i+1 < len(amounts) {
		nextStart = amounts[i+1].Start
	}

	pre := before(lower, a.Start, prevEnd)
	post := after(lower, a.End, nextStart)

	q := qualifier{
		annual: annualBefore.MatchString(pre) || annualAfter.MatchString(post),
		salary: salaryBefore.MatchString(pre) || salaryAfter.MatchString(post),
	}
	// An income keyword wins over a loan keyword in the same window.
	q.loan = !q.salary && loanKeywords.MatchString(pre)
	return q
}
