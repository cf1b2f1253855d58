package runs

import "time"

// Status values for run records.
const (
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// RunRecord is the shape persisted in the job runs DynamoDB table.
type RunRecord struct {
	TriggerID string    `dynamodbav:"trigger_id"` // PK
	Job       string    `dynamodbav:"job"`
	Status    string    `dynamodbav:"status"`
	Attempts  int       `dynamodbav:"attempts"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
	ExpiresAt int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note      string    `dynamodbav:"note,omitempty"`
}
