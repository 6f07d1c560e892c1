package observability_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/lendflow/internal/logging"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnStageEnter(ctx, &domain.StageEvent{Stage: domain.StageVerification})
	hooks.OnStageEnter(ctx, &domain.StageEvent{Stage: domain.StageVerification})
	hooks.OnDecision(ctx, &domain.DecisionEvent{Decision: domain.DecisionApproved, ApprovalPath: "instant"})
	hooks.OnClassifier(ctx, &domain.ClassifierEvent{Source: "llm", Accepted: true})
	hooks.OnClassifier(ctx, &domain.ClassifierEvent{Source: "llm", Err: errors.New("timeout")})
	hooks.OnHandler(ctx, &domain.HandlerEvent{Handler: domain.HandlerVerification, Cascaded: true, Duration: time.Millisecond})
	hooks.OnTurn(ctx, &domain.TurnEvent{Stage: domain.StageSanction, Duration: 20 * time.Millisecond})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageEntries.WithLabelValues("verification")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("approved", "instant", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassifierHints.WithLabelValues("llm", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassifierErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("sanction")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HandlerDuration))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `lendflow_turns_total{stage="sanction"} 1`)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	inner := observability.LogHooks(logging.NewJSONTo(&buf, slog.LevelDebug))
	hooks := inner.Merge(domain.LifecycleHooks{})

	hooks.OnStageEnter(context.Background(), &domain.StageEvent{
		EventBase: domain.EventBase{ConversationID: "c1"},
		Stage:     domain.StageUnderwriting,
		From:      domain.StageVerification,
	})
	hooks.OnClassifier(context.Background(), &domain.ClassifierEvent{Err: errors.New("boom")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"stage_enter"`)
	assert.Contains(t, lines[0], `"conversation_id":"c1"`)
	assert.Contains(t, lines[1], `"err":"boom"`)
}
