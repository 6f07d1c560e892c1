/*
Package lendflow is a deterministic conversation engine for personal loan intake.

A conversation walks a customer through a fixed sequence of stages:

	engagement -> needs_assessment -> verification -> underwriting -> sanction -> closure

Each inbound message yields exactly one resolved reply. When a message completes several
stages at once ("I need 2 lakhs, salary 60k, salaried, Mumbai") the engine cascades through
them in the same turn and reports the steps it took.

Every decision is made by the rule engine (pkg/rules) over the application record. An
external intent classifier may be plugged in, but it is advisory: its hint is only followed
when it is confident and legal for the current stage, and any failure falls back to the
deterministic router.

# Usage

	engine := lendflow.New(
		lendflow.WithStore(file.New(".lendflow/sessions")),
		lendflow.WithLogger(logger),
	)

	s, err := engine.Start(ctx)
	if err != nil {
		log.Fatal(err)
	}

	reply, err := engine.Submit(ctx, s.ID, "I want a personal loan of 5 lakh")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Response)

# Architecture

The engine is hexagonal. Storage (pkg/adapters/memory, file, redis, sqlite), credit
verification (pkg/adapters/bureau), knowledge search (pkg/knowledge, pkg/adapters/loam) and
classification (pkg/classify, pkg/adapters/llm) are ports injected through options. The
transport layers (pkg/adapters/http, pkg/adapters/mcp, pkg/runner) only call the Engine.

Concurrent messages for the same conversation are serialized by pkg/session; distinct
conversations proceed in parallel.
*/
package lendflow
