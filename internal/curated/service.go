package curated

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"resumate/internal/aiservice"
	"resumate/internal/database"
	"resumate/internal/errcode"
	"resumate/internal/metrics"
)

// Generator 根据职位描述生成简历草稿。
type Generator interface {
	GenerateResume(ctx context.Context, userID uint, jobDescription string) (*aiservice.Draft, error)
}

// MasterReader 读取用户的主简历条目及要点。
type MasterReader interface {
	ItemsWithPoints(ctx context.Context, userID uint) ([]database.ResumeItem, error)
}

// GenerateInput 是一次生成请求。
type GenerateInput struct {
	JobDescription string  `json:"job_description"`
	Title          string  `json:"title"`
	JobTitle       *string `json:"job_title"`
	Company        *string `json:"company"`
	JobURL         *string `json:"job_url"`
}

// Service 负责生成并保存定制简历。
type Service struct {
	gen    Generator
	master MasterReader
	store  *Store
	logger *slog.Logger
}

// NewService 构造 Service。
func NewService(gen Generator, master MasterReader, store *Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gen: gen, master: master, store: store, logger: logger}
}

// Store 返回底层存储。
func (s *Service) Store() *Store { return s.store }

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func defaultTitle(in GenerateInput) string {
	if t := strings.TrimSpace(in.Title); t != "" {
		return t
	}
	jobTitle, company := trimmed(in.JobTitle), trimmed(in.Company)
	switch {
	case jobTitle != nil && company != nil:
		return fmt.Sprintf("%s at %s", *jobTitle, *company)
	case jobTitle != nil:
		return *jobTitle
	case company != nil:
		return "Resume for " + *company
	default:
		return "Tailored resume"
	}
}

// Generate 请求草稿，与主简历对照后保存。
func (s *Service) Generate(ctx context.Context, userID uint, in GenerateInput) (*SaveResult, error) {
	description := strings.TrimSpace(in.JobDescription)
	if description == "" {
		return nil, errcode.Required("job_description")
	}

	draft, err := s.gen.GenerateResume(ctx, userID, description)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, errcode.ErrUpstream) {
			outcome = metrics.OutcomeUpstream
		}
		metrics.ObserveGeneration(outcome, 0)
		return nil, fmt.Errorf("generate draft: %w", err)
	}

	items, err := s.master.ItemsWithPoints(ctx, userID)
	if err != nil {
		metrics.ObserveGeneration(metrics.OutcomeFailed, 0)
		return nil, fmt.Errorf("load master items: %w", err)
	}

	doc := Compose(*draft, items, ComposeMeta{
		Title: defaultTitle(in),
		Job: &JobInput{
			Title:       trimmed(in.JobTitle),
			Company:     trimmed(in.Company),
			Description: description,
			URL:         trimmed(in.JobURL),
		},
	})

	result, err := s.store.Save(ctx, userID, doc)
	if err != nil {
		metrics.ObserveGeneration(metrics.OutcomeFailed, 0)
		return nil, err
	}
	metrics.ObserveGeneration(metrics.OutcomeSaved, len(result.Skipped))

	for _, skipped := range result.Skipped {
		s.logger.Warn("skipped unmatched draft item",
			slog.Uint64("user_id", uint64(userID)),
			slog.Uint64("curated_resume_id", uint64(result.ID)),
			slog.String("kind", skipped.Kind),
			slog.String("title", skipped.Title),
		)
	}
	return result, nil
}
