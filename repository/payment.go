package repository

import (
	"commerce_settlement/model"
	"commerce_settlement/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uint) (*model.Payment, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PaymentRepository) GetByQRCode(ctx context.Context, qr string) (*model.Payment, error) {
	return r.first(ctx, "qr_code = ?", qr)
}

func (r *PaymentRepository) first(ctx context.Context, query string, args ...any) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).Where(query, args...).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListByOrder returns the payments whose primary order is orderId, newest first.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderId uint) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderId).
		Order("created_at desc").Order("id desc").
		Find(&payments).Error
	return payments, err
}

// ListByAnyOrder returns payments whose batch contains orderId, newest first.
func (r *PaymentRepository) ListByAnyOrder(ctx context.Context, orderId uint) ([]model.Payment, error) {
	linked := r.db.Model(&model.PaymentOrder{}).Select("payment_id").Where("order_id = ?", orderId)

	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("id IN (?)", linked).
		Order("created_at desc").Order("id desc").
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userId uint, filter model.FilterPaymentInput) ([]model.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Payment{}).Where("user_id = ?", userId)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []model.Payment
	err := utils.ApplyPagination(query, filter.Limit, filter.Page).
		Order("created_at desc").
		Find(&payments).Error
	return payments, total, err
}

// UpdateTransition replaces the mutable columns only if the row still has status from.
func (r *PaymentRepository) UpdateTransition(ctx context.Context, p *model.Payment, from model.PaymentStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", p.ID, from).
		Updates(map[string]any{
			"status":         p.Status,
			"fee":            p.Fee,
			"qr_code":        p.QRCode,
			"transaction_id": p.TransactionId,
			"processed_at":   p.ProcessedAt,
			"updated_by":     p.UpdatedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: payment %d is no longer %s", model.ErrStaleWrite, p.ID, from)
	}
	return nil
}

func (r *PaymentRepository) SoftDelete(ctx context.Context, id uint, actorId uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Payment{}).Where("id = ?", id).Update("deleted_by", actorId)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrPaymentNotFound
		}
		return tx.Delete(&model.Payment{}, id).Error
	})
}

// ListStalePending returns Pending payments of the given methods older than before, oldest first.
func (r *PaymentRepository) ListStalePending(ctx context.Context, methods []model.PaymentMethod, before time.Time, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	if len(methods) == 0 {
		return payments, nil
	}
	err := r.db.WithContext(ctx).
		Where("status = ? AND method IN ? AND created_at < ?", model.PaymentPending, methods, before).
		Order("created_at asc").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
