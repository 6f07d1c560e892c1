/*
Package dialogue implements the conversation state machine of a loan journey.

A Machine takes a loaded session and one inbound message and resolves it into a single
Turn. It routes the message to exactly one handler in fixed precedence:

 1. a yes or no answering a pending EMI adjustment;
 2. an explanation question (what-if EMI, EMI formula, decision);
 3. an edit of data the customer already gave;
 4. an objection;
 5. the default handler of the current stage.

An optional Classifier may replace the last slot when it is confident and names a handler
that is legal in the current state. After a stage handler completes, the machine cascades
into the next stage while the completion flags allow, so one message can carry the customer
from needs assessment to sanction.

The Machine never persists anything. Callers serialize access to a session (see
pkg/session) and save it after Handle returns.
*/
package dialogue
