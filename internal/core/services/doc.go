// Package services implements the core pipeline behind the driving
// ports: query planning, tool orchestration, hybrid retrieval,
// verification/synthesis, trace recording, and corpus management.
package services
