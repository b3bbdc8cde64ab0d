package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"astropitography/internal/logging"
	"astropitography/internal/notifications"
	"astropitography/internal/queue"
	"astropitography/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := m.stageLoggerForLane(ctx, nil, base, item).With(logging.String("component", "workflow-manager"))

	message := m.classifyStageFailure(stageName, stageErr)
	resolved := services.FailureStatus(stageErr)
	if resolved == queue.StatusReview {
		item.SetReview(message)
	} else {
		item.SetFailed(message)
	}

	logger.Error("stage failed",
		logging.String("resolved_status", string(resolved)),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.Alert("stage_failure"),
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastItem(item)
	m.notifyStageFailure(ctx, stageName, item, resolved, message)
}

func (m *Manager) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return m.getStageFailureMessage(stageName, "failed without error detail")
	}
	message := strings.TrimSpace(services.Message(stageErr))
	if message == "" {
		message = m.getStageFailureMessage(stageName, "failed")
	}
	return message
}

func (m *Manager) getStageFailureMessage(stageName, defaultMsg string) string {
	if stageName != "" {
		return fmt.Sprintf("%s %s", stageName, defaultMsg)
	}
	return fmt.Sprintf("workflow %s", defaultMsg)
}

func (m *Manager) notifyStageFailure(ctx context.Context, stageName string, item *queue.Item, resolved queue.Status, message string) {
	if m.notifier == nil {
		return
	}
	var err error
	if resolved == queue.StatusReview {
		err = m.notifier.Publish(ctx, notifications.EventReviewRequired, notifications.Payload{
			"name":   item.DisplayName(),
			"reason": message,
		})
	} else {
		err = m.notifier.Publish(ctx, notifications.EventError, notifications.Payload{
			"context": fmt.Sprintf("%s (session #%d)", stageName, item.ID),
			"error":   message,
		})
	}
	if err != nil && m.logger != nil {
		m.logger.Debug("failed to send stage failure notification", logging.Error(err))
	}
}
