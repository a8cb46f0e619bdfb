package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
)

func TestPlannerService_Plan_SingleFactPassthrough(t *testing.T) {
	llm := &mockLLMService{
		generateFn: func(string) (string, error) {
			return "", errors.New("must not be called")
		},
	}
	planner := NewPlannerService(llm, testPipelineConfig())

	query, err := planner.Plan(context.Background(), "What is the lead time of supplier X?", 3)
	require.NoError(t, err)

	// Single-fact questions never reach the model.
	assert.Equal(t, 0, llm.calls)
	require.Len(t, query.SubQueries, 1)
	assert.Equal(t, "What is the lead time of supplier X?", query.SubQueries[0].Text)
	assert.Equal(t, domain.SubQueryPending, query.SubQueries[0].Status)
	assert.NotEmpty(t, query.ID)
}

func TestPlannerService_Plan_MultiHopDecomposition(t *testing.T) {
	llm := &mockLLMService{
		generateFn: func(string) (string, error) {
			return `Here is the plan:
["What is the lead time of supplier X?", "What is the lead time of supplier Y?"]`, nil
		},
	}
	planner := NewPlannerService(llm, testPipelineConfig())

	query, err := planner.Plan(context.Background(), "Compare the lead times of supplier X and supplier Y", 3)
	require.NoError(t, err)

	require.Len(t, query.SubQueries, 2)
	assert.Equal(t, "sq-1", query.SubQueries[0].ID)
	assert.Equal(t, "sq-2", query.SubQueries[1].ID)
	assert.Contains(t, query.PlanRationale, "multi-hop")
}

func TestPlannerService_Plan_EmptyQuestion(t *testing.T) {
	planner := NewPlannerService(&mockLLMService{}, testPipelineConfig())

	_, err := planner.Plan(context.Background(), "   ", 3)
	require.Error(t, err)

	var planErr *domain.PlanningError
	require.ErrorAs(t, err, &planErr)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPlannerService_Plan_MalformedResponse(t *testing.T) {
	llm := &mockLLMService{
		generateFn: func(string) (string, error) {
			return "I think you should search for supplier X first.", nil
		},
	}
	planner := NewPlannerService(llm, testPipelineConfig())

	_, err := planner.Plan(context.Background(), "Compare the lead times of supplier X and supplier Y", 3)
	require.Error(t, err)

	var planErr *domain.PlanningError
	assert.ErrorAs(t, err, &planErr)
}

func TestPlannerService_Plan_NoLLMForMultiHop(t *testing.T) {
	planner := NewPlannerService(nil, testPipelineConfig())

	_, err := planner.Plan(context.Background(), "Compare the lead times of supplier X and supplier Y", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestPlannerService_Plan_CapsSubQueries(t *testing.T) {
	llm := &mockLLMService{
		generateFn: func(string) (string, error) {
			return `["a", "b", "c", "d", "e", "f"]`, nil
		},
	}
	planner := NewPlannerService(llm, testPipelineConfig())

	query, err := planner.Plan(context.Background(), "Compare a and b and c and d", 10)
	require.NoError(t, err)

	// The hard limit applies even when the caller asks for more.
	assert.LessOrEqual(t, len(query.SubQueries), domain.MaxSubQueryLimit)
}

func TestParseSubQueries(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
		wantErr  bool
	}{
		{
			name:     "plain array",
			response: `["one", "two"]`,
			want:     2,
		},
		{
			name:     "fenced array",
			response: "```json\n[\"one\"]\n```",
			want:     1,
		},
		{
			name:     "surrounding prose",
			response: `Sure! ["one", "two", "three"] Hope that helps.`,
			want:     3,
		},
		{
			name:     "blank entries dropped",
			response: `["one", "  ", ""]`,
			want:     1,
		},
		{
			name:     "no array",
			response: "no json here",
			wantErr:  true,
		},
		{
			name:     "all entries blank",
			response: `["", " "]`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			texts, err := parseSubQueries(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, texts, tt.want)
		})
	}
}
