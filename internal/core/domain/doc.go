// Package domain contains the core business entities for Ansera.
//
// These types have no dependencies on infrastructure or external
// libraries. They represent the ubiquitous language of the pipeline:
// documents and chunks in the corpus, queries and their decomposition
// into sub-queries, tool calls, retrieval results, and the final
// answer with its citations and reasoning trace.
//
// Import rules:
//   - Can Import: standard library only
//   - Cannot Import: ports, services, adapters
package domain
