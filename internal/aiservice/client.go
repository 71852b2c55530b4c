// Package aiservice 调用外部的简历生成服务。
package aiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resumate/internal/errcode"
)

const (
	generatePath = "/api/generate-full-resume"
	// 诊断信息里最多保留的上游响应体
	errorBodyLimit = 8 * 1024
	// 生成结果的上限，超出即视为异常响应
	responseLimit = 4 << 20
)

// Client 通过 HTTP 调用生成服务。
type Client struct {
	baseURL string
	http    *http.Client
}

// New 以给定的请求超时构造客户端。
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient 复用已有的 http.Client。
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    hc,
	}
}

// ErrResponseTooLarge 表示生成服务返回的响应体超过上限。
var ErrResponseTooLarge = errors.New("generation response too large")

type generateRequest struct {
	UserID         uint   `json:"user_id"`
	JobDescription string `json:"job_description"`
}

// GenerateResume 请求一份针对 jobDescription 的简历草稿。
// 只调用一次，不重试；失败统一返回 *errcode.UpstreamError。
func (c *Client) GenerateResume(ctx context.Context, userID uint, jobDescription string) (*Draft, error) {
	payload, err := json.Marshal(generateRequest{UserID: userID, JobDescription: jobDescription})
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errcode.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &errcode.UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseLimit+1))
	if err != nil {
		return nil, &errcode.UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > responseLimit {
		return nil, &errcode.UpstreamError{
			Status: resp.StatusCode,
			Body:   truncate(body),
			Err:    fmt.Errorf("%w: response too large, limit %d bytes", ErrResponseTooLarge, responseLimit),
		}
	}
	draft, err := DecodeDraft(body)
	if err != nil {
		return nil, &errcode.UpstreamError{Status: resp.StatusCode, Body: truncate(body), Err: err}
	}
	return draft, nil
}

func truncate(body []byte) string {
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	return string(body)
}
