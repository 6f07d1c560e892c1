/*
Package ports defines the driven ports (interfaces) of the lendflow engine.

These interfaces decouple the dialogue core from external implementations, allowing
the engine to work with various storage backends, credit bureaus, knowledge bases and
intent classifiers.

# Key Interfaces

  - SessionStore: Responsible for persisting and loading conversation sessions.
  - DistributedLocker: Provides distributed locking for concurrent access to one conversation.
  - CreditVerifier: Fetches the credit and KYC report of a customer.
  - KnowledgeSearcher: Returns product and policy snippets relevant to a message.
  - Classifier: Optional advisory intent classifier. Never the source of truth.
*/
package ports
