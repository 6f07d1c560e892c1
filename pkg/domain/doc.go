/*
Package domain contains the core domain models of the lendflow engine.

It defines the conversation session, the application record that accumulates across turns,
the ordered loan-journey stages, and the turn result returned to hosts. This package is kept
pure and free of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Stage: A discrete, totally ordered phase of the loan journey.
  - ApplicationRecord: Named optional fields plus completion flags, mutated only through
    ApplyExtractedFields, MarkStageComplete and ResetDownstreamFrom.
  - Session: The persisted conversation (stage, history, record, flags).
  - Turn: The aggregated result of processing one inbound message.
*/
package domain
