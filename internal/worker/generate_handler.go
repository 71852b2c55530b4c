package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"resumate/internal/curated"
	"resumate/internal/errcode"
	"resumate/internal/tasks"
)

// Generator 是生成定制简历的最小接口，由 curated.Service 实现。
type Generator interface {
	Generate(ctx context.Context, userID uint, in curated.GenerateInput) (*curated.SaveResult, error)
}

// GenerateTaskHandler 负责消费定制简历生成任务，并通过 Redis 通知前端。
type GenerateTaskHandler struct {
	generator Generator
	publisher Publisher
	logger    *slog.Logger
}

// NewGenerateTaskHandler 创建任务处理器。
func NewGenerateTaskHandler(generator Generator, publisher Publisher, logger *slog.Logger) *GenerateTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateTaskHandler{generator: generator, publisher: publisher, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *GenerateTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.CuratedGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("decode payload: %w", errors.Join(err, asynq.SkipRetry))
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("user_id", uint64(payload.UserID)),
	)
	log.Info("starting curated resume generation")

	result, err := h.generator.Generate(ctx, payload.UserID, curated.GenerateInput{
		JobDescription: payload.JobDescription,
		Title:          payload.Title,
		JobTitle:       payload.JobTitle,
		Company:        payload.Company,
		JobURL:         payload.JobURL,
	})

	notify := GenerationNotifyMessage{
		Type:          notifyTypeGeneration,
		CorrelationID: payload.CorrelationID,
	}
	if err != nil {
		notify.Status = statusFailed
		notify.ErrorCode = errcode.CodeOf(err)
		notify.ErrorMessage = notifyErrorMessage(err)
		log.Error("curated resume generation failed", slog.Any("error", err))
	} else {
		notify.Status = statusCompleted
		notify.CuratedResumeID = result.ID
		notify.Skipped = result.Skipped
		if len(result.Skipped) > 0 {
			// 生成成功，但部分条目无法关联主简历
			notify.ErrorCode = errcode.UnlinkedItems
			notify.ErrorMessage = fmt.Sprintf("%d drafted items had no matching master entry and were skipped", len(result.Skipped))
		}
		log.Info("curated resume generated",
			slog.Uint64("curated_resume_id", uint64(result.ID)),
			slog.Int("skipped", len(result.Skipped)),
		)
	}

	if pubErr := publishNotify(ctx, h.publisher, payload.UserID, notify); pubErr != nil {
		log.Error("publish generation notify failed", slog.Any("error", pubErr))
	}

	if err != nil {
		return fmt.Errorf("generate curated resume: %w", errors.Join(err, asynq.SkipRetry))
	}
	return nil
}

func notifyErrorMessage(err error) string {
	var verr *errcode.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, errcode.ErrUpstream):
		return "resume generation service failed"
	case errors.Is(err, errcode.ErrTransaction):
		return "failed to save curated resume"
	default:
		return "internal error"
	}
}
