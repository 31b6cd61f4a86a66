package models

import (
	"time"

	"gorm.io/datatypes"
)

type BillingEventLogStatus string

const (
	BillingEventLogStatusReceived     BillingEventLogStatus = "received"
	BillingEventLogStatusHandled      BillingEventLogStatus = "handled"
	BillingEventLogStatusHandleFailed BillingEventLogStatus = "handle_failed"
)

// BillingEventLog is an audit trail of webhook events, used for troubleshooting.
type BillingEventLog struct {
	ID         string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID    string                `gorm:"column:event_id;type:varchar(128);index" json:"event_id"`
	EventType  string                `gorm:"column:event_type;type:varchar(128);not null" json:"event_type"`
	CustomerID *string               `gorm:"column:customer_id;type:varchar(128)" json:"customer_id"`
	UserID     *string               `gorm:"column:user_id;type:varchar(128)" json:"user_id"`
	TraceID    string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	EventTime  time.Time             `gorm:"column:event_time" json:"event_time"`
	Data       datatypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	Result     *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	Status     BillingEventLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func (BillingEventLog) TableName() string { return "billing_event_log" }
