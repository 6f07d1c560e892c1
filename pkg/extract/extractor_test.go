package extract_test

import (
	"testing"

	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Units(t *testing.T) {
	tests := []struct {
		msg  string
		want float64
	}{
		{"2 lakh", 200000},
		{"2 lakhs", 200000},
		{"2.5 lac", 250000},
		{"3 lacs please", 300000},
		{"1.5L", 150000},
		{"1 crore", 10000000},
		{"2cr", 20000000},
		{"500k", 500000},
		{"250000", 250000},
		{"2,50,000", 250000},
		{"₹ 1,200,000", 1200000},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			f := extract.Extract(tt.msg, &domain.ApplicationRecord{})
			require.NotNil(t, f.LoanAmount)
			assert.Equal(t, tt.want, *f.LoanAmount)
			assert.Nil(t, f.Salary)
		})
	}
}

func TestExtract_FullMessage(t *testing.T) {
	f := extract.Extract("I need 2 lakhs, salary 60k, salaried, Mumbai", &domain.ApplicationRecord{})

	require.NotNil(t, f.LoanAmount)
	require.NotNil(t, f.Salary)
	assert.Equal(t, 200000.0, *f.LoanAmount)
	assert.Equal(t, 60000.0, *f.Salary)
	assert.Equal(t, domain.EmploymentSalaried, f.EmploymentStatus)
	assert.Equal(t, "Mumbai", f.City)
}

func TestExtract_Disambiguation(t *testing.T) {
	t.Run("Salary keyword first", func(t *testing.T) {
		f := extract.Extract("my monthly income is 75k and I want 5 lakhs", &domain.ApplicationRecord{})
		assert.Equal(t, 75000.0, *f.Salary)
		assert.Equal(t, 500000.0, *f.LoanAmount)
	})

	t.Run("Loan already known", func(t *testing.T) {
		r := &domain.ApplicationRecord{LoanAmount: domain.Float(200000)}
		f := extract.Extract("60k", r)
		assert.Nil(t, f.LoanAmount)
		require.NotNil(t, f.Salary)
		assert.Equal(t, 60000.0, *f.Salary)
	})

	t.Run("Second amount is salary", func(t *testing.T) {
		f := extract.Extract("5 lakhs 80k", &domain.ApplicationRecord{})
		assert.Equal(t, 500000.0, *f.LoanAmount)
		assert.Equal(t, 80000.0, *f.Salary)
	})

	t.Run("Short number needs income keyword", func(t *testing.T) {
		f := extract.Extract("I am 32 and earn 45000", &domain.ApplicationRecord{})
		assert.Nil(t, f.LoanAmount)
		require.NotNil(t, f.Salary)
		assert.Equal(t, 45000.0, *f.Salary)
	})

	t.Run("Periodic suffix qualifies salary", func(t *testing.T) {
		f := extract.Extract("I get 50k per month", &domain.ApplicationRecord{})
		assert.Nil(t, f.LoanAmount)
		assert.Equal(t, 50000.0, *f.Salary)
	})
}

func TestExtract_Annual(t *testing.T) {
	f := extract.Extract("loan of 3 lakhs, I make 12 lakhs per annum", &domain.ApplicationRecord{})
	assert.Equal(t, 300000.0, *f.LoanAmount)
	assert.Equal(t, 100000.0, *f.Salary)

	f = extract.Extract("annual income 6 lakh", &domain.ApplicationRecord{LoanAmount: domain.Float(1)})
	assert.Equal(t, 50000.0, *f.Salary)
}

func TestExtract_NeverOverwrites(t *testing.T) {
	r := &domain.ApplicationRecord{
		LoanAmount:       domain.Float(200000),
		Salary:           domain.Float(60000),
		EmploymentStatus: domain.EmploymentSalaried,
		City:             "Mumbai",
	}
	f := extract.Extract("5 lakhs, salary 90k, self-employed, Pune", r)
	assert.True(t, f.IsEmpty(), "got %+v", f)
}

func TestExtract_Employment(t *testing.T) {
	tests := map[string]domain.Employment{
		"I am self-employed":         domain.EmploymentSelfEmployed,
		"self employed professional": domain.EmploymentSelfEmployed,
		"I run a business":           domain.EmploymentSelfEmployed,
		"contract worker":            domain.EmploymentContract,
		"I'm a contractual employee": domain.EmploymentContract,
		"salaried":                   domain.EmploymentSalaried,
		"I am employed at TCS":       domain.EmploymentSalaried,
	}
	for msg, want := range tests {
		t.Run(msg, func(t *testing.T) {
			f := extract.Extract(msg, &domain.ApplicationRecord{})
			assert.Equal(t, want, f.EmploymentStatus)
		})
	}

	f := extract.Extract("I am unemployed", &domain.ApplicationRecord{})
	assert.Empty(t, f.EmploymentStatus)
}

func TestExtract_City(t *testing.T) {
	f := extract.Extract("I live in BANGALORE", &domain.ApplicationRecord{})
	assert.Equal(t, "Bengaluru", f.City)

	f = extract.Extract("moving from Pune to Mumbai", &domain.ApplicationRecord{})
	assert.Equal(t, "Mumbai", f.City, "gazetteer order wins over message order")

	f = extract.Extract("agrarian", &domain.ApplicationRecord{})
	assert.Empty(t, f.City)
}

func TestExtract_NoMatch(t *testing.T) {
	f := extract.Extract("hello there", nil)
	assert.True(t, f.IsEmpty())
}

func TestExtract_ContactDigitsAreNotAmounts(t *testing.T) {
	f := extract.Extract("mobile 9876543210, need 3 lakhs", &domain.ApplicationRecord{})
	require.NotNil(t, f.LoanAmount)
	assert.Equal(t, 300000.0, *f.LoanAmount)
	assert.Nil(t, f.Salary)
}

func TestExtractChanges(t *testing.T) {
	t.Run("Salary targeted", func(t *testing.T) {
		f := extract.ExtractChanges("change salary to 90k")
		require.NotNil(t, f.Salary)
		assert.Equal(t, 90000.0, *f.Salary)
		assert.Nil(t, f.LoanAmount)
	})

	t.Run("Untargeted amount is the loan", func(t *testing.T) {
		f := extract.ExtractChanges("actually make it 3 lakhs")
		require.NotNil(t, f.LoanAmount)
		assert.Equal(t, 300000.0, *f.LoanAmount)
	})

	t.Run("Both targeted", func(t *testing.T) {
		f := extract.ExtractChanges("update loan amount to 4 lakhs and salary to 1 lakh")
		assert.Equal(t, 400000.0, *f.LoanAmount)
		assert.Equal(t, 100000.0, *f.Salary)
	})

	t.Run("Income mentioned elsewhere", func(t *testing.T) {
		f := extract.ExtractChanges("my income changed, it is now 95k")
		require.NotNil(t, f.Salary)
		assert.Equal(t, 95000.0, *f.Salary)
	})

	t.Run("City and employment", func(t *testing.T) {
		f := extract.ExtractChanges("change my city to Pune, I am self-employed now")
		assert.Equal(t, "Pune", f.City)
		assert.Equal(t, domain.EmploymentSelfEmployed, f.EmploymentStatus)
	})
}

func TestExtractContact(t *testing.T) {
	c, rest := extract.ExtractContact("reach me at asha.k@example.com or phone: 9876543210")
	assert.Equal(t, "asha.k@example.com", c.Email)
	assert.Equal(t, "9876543210", c.Phone)
	assert.NotContains(t, rest, "9876543210")
	assert.NotContains(t, rest, "@")

	c, _ = extract.ExtractContact("no contact here")
	assert.True(t, c.IsEmpty())
}

func TestParseAmount(t *testing.T) {
	v, ok := extract.ParseAmount("6k")
	assert.True(t, ok)
	assert.Equal(t, 6000.0, v)

	v, ok = extract.ParseAmount("6000")
	assert.True(t, ok)
	assert.Equal(t, 6000.0, v)

	_, ok = extract.ParseAmount("six")
	assert.False(t, ok)
}
