/*
Package session implements per-conversation serialization and persistence orchestration.

A Manager wraps a ports.SessionStore. Every operation on one conversation ID runs under a
reference-counted local mutex and, when configured, a distributed lock, so two messages for
the same conversation never interleave while different conversations run concurrently.
*/
package session
