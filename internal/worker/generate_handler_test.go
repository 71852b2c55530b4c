package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumate/internal/curated"
	"resumate/internal/errcode"
	"resumate/internal/tasks"
)

type fakeGenerator struct {
	result *curated.SaveResult
	err    error
	got    curated.GenerateInput
}

func (f *fakeGenerator) Generate(_ context.Context, _ uint, in curated.GenerateInput) (*curated.SaveResult, error) {
	f.got = in
	return f.result, f.err
}

type published struct {
	channel string
	message GenerationNotifyMessage
}

type fakePublisher struct {
	messages []published
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	var msg GenerationNotifyMessage
	_ = json.Unmarshal(message.([]byte), &msg)
	p.messages = append(p.messages, published{channel: channel, message: msg})
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func newTask(t *testing.T) *asynq.Task {
	t.Helper()
	company := "Acme"
	task, err := tasks.NewCuratedGenerateTask(tasks.CuratedGeneratePayload{
		UserID:         42,
		JobDescription: "Go developer",
		Company:        &company,
		CorrelationID:  "corr-1",
	})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestGenerateTaskHandlerPublishesResult(t *testing.T) {
	gen := &fakeGenerator{result: &curated.SaveResult{
		ID:      9,
		Skipped: []curated.SkippedItem{{Kind: "project", Title: "Side Project"}},
	}}
	pub := &fakePublisher{}
	h := NewGenerateTaskHandler(gen, pub, nil)

	if err := h.ProcessTask(context.Background(), newTask(t)); err != nil {
		t.Fatalf("process task: %v", err)
	}
	if gen.got.JobDescription != "Go developer" || gen.got.Company == nil || *gen.got.Company != "Acme" {
		t.Fatalf("unexpected generate input %+v", gen.got)
	}
	if len(pub.messages) != 1 || pub.messages[0].channel != "user_notify:42" {
		t.Fatalf("unexpected publishes %+v", pub.messages)
	}
	msg := pub.messages[0].message
	if msg.Status != statusCompleted || msg.CuratedResumeID != 9 || msg.ErrorCode != errcode.UnlinkedItems || len(msg.Skipped) != 1 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.CorrelationID != "corr-1" {
		t.Fatalf("correlation id lost: %+v", msg)
	}
}

func TestGenerateTaskHandlerReportsFailure(t *testing.T) {
	gen := &fakeGenerator{err: &errcode.UpstreamError{Status: 503}}
	pub := &fakePublisher{}
	h := NewGenerateTaskHandler(gen, pub, nil)

	err := h.ProcessTask(context.Background(), newTask(t))
	if !errors.Is(err, asynq.SkipRetry) || !errors.Is(err, errcode.ErrUpstream) {
		t.Fatalf("expected non-retryable upstream error, got %v", err)
	}
	msg := pub.messages[0].message
	if msg.Status != statusFailed || msg.ErrorCode != errcode.Upstream || msg.ErrorMessage != "resume generation service failed" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestGenerateTaskHandlerRejectsBadPayload(t *testing.T) {
	h := NewGenerateTaskHandler(&fakeGenerator{}, &fakePublisher{}, nil)
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeCuratedGenerate, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected skip retry, got %v", err)
	}
}
