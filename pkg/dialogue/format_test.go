package dialogue_test

import (
	"testing"

	"github.com/aretw0/lendflow/pkg/dialogue"
	"github.com/stretchr/testify/assert"
)

func TestRupees(t *testing.T) {
	tests := map[float64]string{
		999:      "₹999",
		200000:   "₹2,00,000",
		6434.414: "₹6,434.41",
		1234.5:   "₹1,234.50",
		10000000: "₹1,00,00,000",
		0:        "₹0",
	}
	for in, want := range tests {
		assert.Equal(t, want, dialogue.Rupees(in), "Rupees(%v)", in)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "10.5%", dialogue.Percent(10.5))
	assert.Equal(t, "12%", dialogue.Percent(12))
}
