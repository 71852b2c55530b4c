package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeCuratedGenerate = "curated:generate"
)

// generateTimeout 覆盖 AI 调用与保存事务。
const generateTimeout = 5 * time.Minute

// CuratedGeneratePayload 描述一次异步定制简历生成请求。
type CuratedGeneratePayload struct {
	UserID         uint    `json:"user_id"`
	JobDescription string  `json:"job_description"`
	Title          string  `json:"title,omitempty"`
	JobTitle       *string `json:"job_title,omitempty"`
	Company        *string `json:"company,omitempty"`
	JobURL         *string `json:"job_url,omitempty"`
	CorrelationID  string  `json:"correlation_id"`
}

// NewCuratedGenerateTask 构造生成任务。生成调用外部 AI 服务，失败不自动重试。
func NewCuratedGenerateTask(payload CuratedGeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", TypeCuratedGenerate, err)
	}
	return asynq.NewTask(TypeCuratedGenerate, data, asynq.MaxRetry(0), asynq.Timeout(generateTimeout)), nil
}
