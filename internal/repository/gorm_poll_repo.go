package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/database"
	"github.com/weiawesome/wes-chat/pkg/log"
)

// GormPollRepository implements PollRepository using GORM.
type GormPollRepository struct {
	db *gorm.DB
}

// NewGormPollRepository creates a new GORM-based poll repository.
func NewGormPollRepository(db *gorm.DB) *GormPollRepository {
	return &GormPollRepository{db: db}
}

// Create stores the poll and its companion message in one transaction.
func (r *GormPollRepository) Create(ctx context.Context, p *domain.Poll, companion *domain.Message) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(domain.PollToModel(p)).Error; err != nil {
			return err
		}
		return tx.Create(domain.MessageToModel(companion)).Error
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldPollID, p.ID).Msg("failed to create poll in db")
		return err
	}
	l.Debug().Str(log.FieldPollID, p.ID).Str(log.FieldMessageID, companion.ID).Msg("poll created in db")
	return nil
}

// GetByID retrieves a poll by ID.
func (r *GormPollRepository) GetByID(ctx context.Context, id string) (*domain.Poll, error) {
	l := log.Ctx(ctx)

	var model domain.PollModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldPollID, id).Msg("failed to get poll by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// Update writes the mutable poll state: options, totals and activity.
func (r *GormPollRepository) Update(ctx context.Context, p *domain.Poll) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.PollModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"options":     database.NewJSON(p.Options),
			"total_votes": p.TotalVotes,
			"is_active":   p.IsActive,
		})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldPollID, p.ID).Msg("failed to update poll in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPollNotFound
	}
	return nil
}

// ListByGroup returns the polls of group, newest first.
func (r *GormPollRepository) ListByGroup(ctx context.Context, group string) ([]*domain.Poll, error) {
	l := log.Ctx(ctx)

	var models []domain.PollModel
	err := r.db.WithContext(ctx).
		Where("group_name = ?", group).
		Order("created_at DESC").Order("id DESC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldGroup, group).Msg("failed to list polls from db")
		return nil, err
	}

	polls := make([]*domain.Poll, len(models))
	for i := range models {
		polls[i] = models[i].ToDomain()
	}
	return polls, nil
}
