package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/lendflow/pkg/adapters/llm"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, content string, status int, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   llm.DefaultModel,
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassifier_Analyze(t *testing.T) {
	var req capturedRequest
	srv := completionServer(t, `{
		"intent": "modification",
		"next_handler": "Modification",
		"extracted_data": {"salary": "90k", "city": "bombay", "employment_status": "Self-Employed", "loan_amount": null},
		"modification_type": "salary",
		"is_confirmation": false,
		"is_rejection": false,
		"confidence": "0.92"
	}`, http.StatusOK, &req)

	c := llm.New("test-key", llm.WithBaseURL(srv.URL+"/"))
	cc := ports.ClassifierContext{
		ConversationID: "sess-1",
		Stage:          domain.StageSanction,
		Record:         domain.ApplicationRecord{LoanAmount: domain.Float(200000)},
		Recent:         []domain.Message{{Role: domain.RoleUser, Content: "I need 2 lakhs"}},
	}

	hint, err := c.Analyze(context.Background(), "change salary to 90k", cc)
	require.NoError(t, err)

	assert.Equal(t, llm.Source, hint.Source)
	assert.Equal(t, domain.HandlerModification, hint.NextHandler)
	assert.InDelta(t, 0.92, hint.Confidence, 1e-9)
	require.NotNil(t, hint.ExtractedData.Salary)
	assert.Equal(t, 90000.0, *hint.ExtractedData.Salary)
	assert.Nil(t, hint.ExtractedData.LoanAmount)
	assert.Equal(t, "Mumbai", hint.ExtractedData.City)
	assert.Equal(t, domain.EmploymentSelfEmployed, hint.ExtractedData.EmploymentStatus)

	assert.Equal(t, llm.DefaultModel, req.Model)
	assert.Equal(t, "json_object", req.ResponseFormat.Type)
	assert.InDelta(t, 0.1, req.Temperature, 1e-6)
	assert.Equal(t, 500, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "Stage: sanction")
	assert.Contains(t, req.Messages[0].Content, `"next_handler"`)
	assert.Contains(t, req.Messages[0].Content, "I need 2 lakhs")
	assert.Equal(t, "User message: change salary to 90k", req.Messages[1].Content)
}

func TestClassifier_Errors(t *testing.T) {
	cc := ports.ClassifierContext{Stage: domain.StageEngagement}

	t.Run("Not JSON", func(t *testing.T) {
		srv := completionServer(t, "I think this is a greeting", http.StatusOK, nil)
		_, err := llm.New("test-key", llm.WithBaseURL(srv.URL)).Analyze(context.Background(), "hi", cc)
		assert.Error(t, err)
	})

	t.Run("API error", func(t *testing.T) {
		srv := completionServer(t, "", http.StatusTooManyRequests, nil)
		_, err := llm.New("test-key", llm.WithBaseURL(srv.URL)).Analyze(context.Background(), "hi", cc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chat completion failed")
	})
}
