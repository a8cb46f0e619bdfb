package domain

import "time"

// SubQueryStatus tracks the lifecycle of a decomposed sub-query.
type SubQueryStatus string

const (
	// SubQueryPending means retrieval has not run yet.
	SubQueryPending SubQueryStatus = "pending"

	// SubQueryAnswered means retrieval produced at least one result.
	SubQueryAnswered SubQueryStatus = "answered"

	// SubQueryUnanswered means all retrieval paths failed or returned
	// nothing. The sub-query contributes reduced confidence instead of
	// aborting the query.
	SubQueryUnanswered SubQueryStatus = "unanswered"
)

// SubQuery is one independently answerable unit of an original
// question.
type SubQuery struct {
	// ID is unique within the owning Query.
	ID string

	// Text is the sub-query question text.
	Text string

	// Status records whether retrieval answered this sub-query.
	Status SubQueryStatus
}

// Query represents one incoming question and its decomposition.
// It is created per question, mutated as sub-queries are answered,
// and discarded after the response.
type Query struct {
	// ID is the unique identifier for the query.
	ID string

	// Question is the original user question.
	Question string

	// SubQueries is the ordered decomposition. A single-fact question
	// has exactly one sub-query equal to the question itself.
	SubQueries []SubQuery

	// PlanRationale is the planner's free-text explanation, recorded
	// for the reasoning trace.
	PlanRationale string

	// CreatedAt is when the query was planned.
	CreatedAt time.Time
}

// Answered returns the number of sub-queries with answered status.
func (q *Query) Answered() int {
	n := 0
	for i := range q.SubQueries {
		if q.SubQueries[i].Status == SubQueryAnswered {
			n++
		}
	}
	return n
}
