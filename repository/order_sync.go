package repository

import (
	"commerce_settlement/model"
	"context"
	"time"

	"gorm.io/gorm"
)

type OrderSyncRepository struct {
	db *gorm.DB
}

func NewOrderSyncRepository(db *gorm.DB) *OrderSyncRepository {
	return &OrderSyncRepository{db: db}
}

func (r *OrderSyncRepository) Enqueue(ctx context.Context, task *model.OrderSyncTask) error {
	if task.NextRunAt.IsZero() {
		task.NextRunAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *OrderSyncRepository) Due(ctx context.Context, now time.Time, maxAttempts, limit int) ([]model.OrderSyncTask, error) {
	var tasks []model.OrderSyncTask
	err := r.db.WithContext(ctx).
		Where("done_at IS NULL AND next_run_at <= ? AND attempts < ?", now, maxAttempts).
		Order("next_run_at asc").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

func (r *OrderSyncRepository) MarkDone(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&model.OrderSyncTask{}).
		Where("id = ?", id).
		Update("done_at", time.Now()).Error
}

func (r *OrderSyncRepository) MarkFailed(ctx context.Context, id uint, attempts int, errText string, next time.Time) error {
	return r.db.WithContext(ctx).Model(&model.OrderSyncTask{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":    attempts,
			"last_error":  errText,
			"next_run_at": next,
		}).Error
}
