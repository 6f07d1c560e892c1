package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/lendflow/pkg/domain"
)

// LogHooks returns lifecycle hooks that write one structured line per event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(ctx context.Context, e *domain.StageEvent) {
			logger.Info("stage_enter",
				"conversation_id", e.ConversationID,
				"stage", e.Stage,
				"from", e.From)
		},
		OnStageLeave: func(ctx context.Context, e *domain.StageEvent) {
			logger.Debug("stage_leave", "conversation_id", e.ConversationID, "stage", e.Stage)
		},
		OnHandler: func(ctx context.Context, e *domain.HandlerEvent) {
			logger.Debug("handler",
				"conversation_id", e.ConversationID,
				"handler", e.Handler,
				"stage", e.Stage,
				"cascaded", e.Cascaded,
				"duration", e.Duration)
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			logger.Info("decision",
				"conversation_id", e.ConversationID,
				"decision", e.Decision,
				"approval_path", e.ApprovalPath,
				"escalated", e.Escalated)
		},
		OnClassifier: func(ctx context.Context, e *domain.ClassifierEvent) {
			if e.Err != nil {
				logger.Warn("classifier_error", "conversation_id", e.ConversationID, "err", e.Err)
				return
			}
			logger.Debug("classifier",
				"conversation_id", e.ConversationID,
				"source", e.Source,
				"accepted", e.Accepted,
				"confidence", e.Confidence)
		},
		OnTurn: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Info("turn",
				"conversation_id", e.ConversationID,
				"stage", e.Stage,
				"handlers", e.Handlers,
				"duration", e.Duration)
		},
	}
}
