package eventqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeShopifyWebhook    JobType = "shopify_webhook"
	JobTypeStripeWebhook     JobType = "stripe_webhook"
	JobTypeGoCardlessWebhook JobType = "gocardless_webhook"
	JobTypeMailchimpWebhook  JobType = "mailchimp_webhook"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a queued webhook delivery awaiting processing
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// WebhookJobPayload carries one logical provider event through the queue.
// Receivers write the raw payload to the blob store before enqueueing, so
// S3Key is always dereferenceable by the processor.
type WebhookJobPayload struct {
	Event         json.RawMessage `json:"event"`
	S3Key         string          `json:"s3Key"`
	CorrelationID string          `json:"payloadId"`
}

// ToMap converts the payload to a map for storage
func (p WebhookJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"event":     string(p.Event),
		"s3Key":     p.S3Key,
		"payloadId": p.CorrelationID,
	}
}

// WebhookJobPayloadFromMap creates a payload from a stored job map
func WebhookJobPayloadFromMap(data map[string]interface{}) (*WebhookJobPayload, error) {
	payload := &WebhookJobPayload{}
	if v, ok := data["event"].(string); ok {
		payload.Event = json.RawMessage(v)
	}
	if v, ok := data["s3Key"].(string); ok {
		payload.S3Key = v
	}
	if v, ok := data["payloadId"].(string); ok {
		payload.CorrelationID = v
	}
	return payload, nil
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
