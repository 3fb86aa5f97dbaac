package repository

import (
	"commerce_settlement/model"
	"context"

	"gorm.io/gorm"
)

type CallbackLogRepository struct {
	db *gorm.DB
}

func NewCallbackLogRepository(db *gorm.DB) *CallbackLogRepository {
	return &CallbackLogRepository{db: db}
}

func (r *CallbackLogRepository) Create(ctx context.Context, entry *model.CallbackLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *CallbackLogRepository) MarkResult(ctx context.Context, id uint, status model.CallbackLogStatus, paymentId *uint, errText string) error {
	return r.db.WithContext(ctx).Model(&model.CallbackLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"payment_id": paymentId,
			"error":      errText,
		}).Error
}

func (r *CallbackLogRepository) ListByTransaction(ctx context.Context, transactionId string) ([]model.CallbackLog, error) {
	var logs []model.CallbackLog
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionId).
		Order("id asc").
		Find(&logs).Error
	return logs, err
}
