package lendflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/lendflow"
)

// ExampleEngine_Submit shows a whole application resolved by a single message.
func ExampleEngine_Submit() {
	ctx := context.Background()
	engine := lendflow.New()

	s, err := engine.Start(ctx)
	if err != nil {
		log.Fatal(err)
	}

	reply, err := engine.Submit(ctx, s.ID, "I need 2 lakhs, salary 60k, salaried, Mumbai")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(reply.Stage)
	fmt.Println(reply.Application.Decision)
	fmt.Println(reply.Handlers)
	// Output:
	// sanction
	// approved
	// [engagement needs_assessment verification underwriting sanction]
}

// ExampleEngine_Status shows the loan summary once the EMI is known.
func ExampleEngine_Status() {
	ctx := context.Background()
	engine := lendflow.New()

	if _, err := engine.Submit(ctx, "demo", "I need 2 lakhs, salary 60k, salaried, Mumbai"); err != nil {
		log.Fatal(err)
	}
	st, err := engine.Status(ctx, "demo")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(st.EligibilityStatus, st.RiskCategory, *st.InterestRate)
	// Output: approved low 10.5
}
