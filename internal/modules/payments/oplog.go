package payments

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type OperationType string

const (
	OpInitiatePayment OperationType = "initiate_payment"
	OpRefund          OperationType = "refund"
	OpHealthCheck     OperationType = "health_check"
)

// OperationLogEntry records one outbound gateway call attempt. An entry is
// opened before the call with the request payload snapshot, sealed exactly
// once with the response or the error, then appended. Rows are never updated;
// a retried call writes a new entry.
type OperationLogEntry struct {
	ID       string        `gorm:"type:char(36);primaryKey"`
	TenantID string        `gorm:"type:char(36);not null;index:ix_oplog_tenant"`
	Op       OperationType `gorm:"column:operation;type:varchar(32);not null"`
	Provider string        `gorm:"type:varchar(64);not null;index:ix_oplog_provider"`

	TransactionID     *string `gorm:"type:char(36);index:ix_oplog_transaction"`
	TransactionNumber *string `gorm:"type:varchar(32)"`

	Request  datatypes.JSON  `gorm:"type:json;not null"`
	Response *datatypes.JSON `gorm:"type:json"`

	Success      bool    `gorm:"not null"`
	ErrorCode    *string `gorm:"type:varchar(64)"`
	ErrorMessage *string `gorm:"type:varchar(255)"`

	StartedAt   time.Time `gorm:"type:datetime(3);not null"`
	CompletedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (OperationLogEntry) TableName() string { return "gateway_operation_logs" }

func openOperation(tenantID string, op OperationType, provider string, tx *Transaction, request any, now time.Time) *OperationLogEntry {
	e := &OperationLogEntry{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Op:        op,
		Provider:  provider,
		Request:   mustJSON(request),
		StartedAt: now,
	}
	if tx != nil {
		e.TransactionID = strPtr(tx.ID)
		e.TransactionNumber = strPtr(tx.Number)
	}
	return e
}

func (e *OperationLogEntry) sealSuccess(response any, now time.Time) {
	body := mustJSON(response)
	e.Response = &body
	e.Success = true
	e.CompletedAt = now
}

func (e *OperationLogEntry) sealFailure(code, message string, now time.Time) {
	e.Success = false
	if code != "" {
		e.ErrorCode = strPtr(code)
	}
	e.ErrorMessage = strPtr(truncate(message, 255))
	e.CompletedAt = now
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(`{}`)
	}
	return datatypes.JSON(b)
}
