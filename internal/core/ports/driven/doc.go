// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentStore: document and chunk persistence
//   - LLMService: planning, claim extraction, and synthesis all need it
//   - EmbeddingService: query and ingestion embeddings
//
// # Degradable Interfaces
//
//   - VectorIndex: when unreachable, retrieval falls back to keyword search
//   - SearchEngine: the keyword fallback path; without it a vector outage
//     marks the affected sub-queries unanswered
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter package
package driven
