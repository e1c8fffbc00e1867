package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/zawbuild/sitebooks_backend/utils"
	"gorm.io/gorm"
)

// LedgerEventRecord is a transactional outbox row: it is written inside
// the same transaction as the mutation it describes, so a reporting
// collaborator that tails this table never sees an event for a change
// that did not commit, nor a committed change without its event.
type LedgerEventRecord struct {
	ID            int               `gorm:"primary_key" json:"id"`
	EntityType    LedgerEntityType  `gorm:"size:50;not null;index" json:"entity_type"`
	EntityId      int               `gorm:"not null;index" json:"entity_id"`
	Action        LedgerEventAction `gorm:"size:20;not null" json:"action"`
	Payload       []byte            `gorm:"type:json" json:"payload"`
	RecordedBy    int               `gorm:"default:null" json:"recorded_by"`
	CorrelationId string            `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func publishLedgerEvent(ctx context.Context, tx *gorm.DB, entityType LedgerEntityType, entityId int, action LedgerEventAction, obj interface{}) error {
	var payload []byte
	var err error
	if obj != nil {
		payload, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}

	recordedBy, _ := utils.GetUserIdFromContext(ctx)

	record := LedgerEventRecord{
		EntityType:    entityType,
		EntityId:      entityId,
		Action:        action,
		Payload:       payload,
		RecordedBy:    recordedBy,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
