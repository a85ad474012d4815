// Package entitlement 管理 AI 操作额度。每次 AI 步骤执行前都要
// 通过 Consume 扣减一次，额度由远端授权服务或本地配额提供。
package entitlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"droidflow/orchestrator/pkg/logger"
	"droidflow/orchestrator/pkg/ports"
)

// LicenseClient 调用远端授权服务的配额接口。服务端原子地
// 扣减并返回剩余次数，客户端从不本地缓存或自行扣减。
type LicenseClient struct {
	baseURL    string
	licenseKey string
	machineID  string
	client     *http.Client
}

// NewLicenseClient creates a client for the license server at baseURL.
func NewLicenseClient(baseURL, licenseKey, machineID string) *LicenseClient {
	return &LicenseClient{
		baseURL:    baseURL,
		licenseKey: licenseKey,
		machineID:  machineID,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

var _ ports.Entitlements = (*LicenseClient)(nil)

type consumeRequest struct {
	LicenseKey string `json:"licenseKey"`
	MachineID  string `json:"machineId"`
	Operation  string `json:"operation"`
}

type consumeResponse struct {
	Success   bool   `json:"success"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}

// Consume asks the license server for one AI operation.
func (c *LicenseClient) Consume(ctx context.Context, operation string) (int, error) {
	body, err := json.Marshal(consumeRequest{
		LicenseKey: c.licenseKey,
		MachineID:  c.machineID,
		Operation:  operation,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai-request", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("license server unreachable: %w", err)
	}
	defer resp.Body.Close()

	var parsed consumeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("license server response not json: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success {
		message := parsed.Error
		if message == "" {
			message = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return 0, fmt.Errorf("ai request denied: %s", message)
	}

	logger.Debug("授权服务确认 %s，剩余 %d 次", operation, parsed.Remaining)
	return parsed.Remaining, nil
}

// Quota 本地内存配额，单机部署和测试时用。limit < 0 表示不限量。
type Quota struct {
	mu        sync.Mutex
	remaining int
	unlimited bool
}

// NewQuota creates a local quota with the given number of AI operations.
// A negative limit means unlimited.
func NewQuota(limit int) *Quota {
	return &Quota{remaining: limit, unlimited: limit < 0}
}

var _ ports.Entitlements = (*Quota)(nil)

// Consume takes one operation from the quota.
func (q *Quota) Consume(_ context.Context, operation string) (int, error) {
	if q.unlimited {
		return -1, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.remaining <= 0 {
		return 0, fmt.Errorf("ai quota exhausted for %s", operation)
	}
	q.remaining--
	return q.remaining, nil
}

// Remaining reports the quota left, -1 when unlimited.
func (q *Quota) Remaining() int {
	if q.unlimited {
		return -1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining
}
