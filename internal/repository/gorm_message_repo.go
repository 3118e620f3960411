package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/database"
	"github.com/weiawesome/wes-chat/pkg/log"
)

// visibleTo hides pending scheduled messages from everyone but the sender.
const visibleTo = "(scheduled_at IS NULL OR dispatched = ? OR sender = ?)"

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create stores a new message.
func (r *GormMessageRepository) Create(ctx context.Context, m *domain.Message) error {
	l := log.Ctx(ctx)

	model := domain.MessageToModel(m)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldMessageID, m.ID).Msg("failed to create message in db")
		return err
	}
	l.Debug().Str(log.FieldMessageID, m.ID).Msg("message created in db")
	return nil
}

// GetByID retrieves a message by ID.
func (r *GormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	l := log.Ctx(ctx)

	var model domain.MessageModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldMessageID, id).Msg("failed to get message by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// RecentPublic returns the newest limit public messages in chronological
// order.
func (r *GormMessageRepository) RecentPublic(ctx context.Context, viewer string, limit int) ([]*domain.Message, error) {
	l := log.Ctx(ctx)

	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("kind = ?", string(domain.DestinationPublic)).
		Where(visibleTo, true, viewer).
		Order("sent_at DESC").Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Msg("failed to load public history")
		return nil, err
	}

	msgs := toDomainMessages(models)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// PrivateHistory returns every private message user sent or received,
// oldest first.
func (r *GormMessageRepository) PrivateHistory(ctx context.Context, user string) ([]*domain.Message, error) {
	l := log.Ctx(ctx)

	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("kind = ?", string(domain.DestinationPrivate)).
		Where("(sender = ? OR target = ?)", user, user).
		Where(visibleTo, true, user).
		Order("sent_at ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldUsername, user).Msg("failed to load private history")
		return nil, err
	}
	return toDomainMessages(models), nil
}

// GroupHistory returns the messages of group, oldest first.
func (r *GormMessageRepository) GroupHistory(ctx context.Context, group, viewer string) ([]*domain.Message, error) {
	l := log.Ctx(ctx)

	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("kind = ? AND target = ?", string(domain.DestinationGroup), group).
		Where(visibleTo, true, viewer).
		Order("sent_at ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldGroup, group).Msg("failed to load group history")
		return nil, err
	}
	return toDomainMessages(models), nil
}

// PinnedInGroup returns the pinned messages of group ordered by pin order.
func (r *GormMessageRepository) PinnedInGroup(ctx context.Context, group string) ([]*domain.Message, error) {
	l := log.Ctx(ctx)

	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("kind = ? AND target = ? AND pinned = ?", string(domain.DestinationGroup), group, true).
		Order("pin_order ASC").Order("pinned_at ASC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldGroup, group).Msg("failed to load pinned messages")
		return nil, err
	}
	return toDomainMessages(models), nil
}

// MarkDeleted soft-deletes a message.
func (r *GormMessageRepository) MarkDeleted(ctx context.Context, id string) error {
	return r.updateLive(ctx, id, map[string]interface{}{"deleted": true})
}

// UpdateBody replaces the body of a live message and flags it as edited.
func (r *GormMessageRepository) UpdateBody(ctx context.Context, id, body string, editedAt time.Time) error {
	return r.updateLive(ctx, id, map[string]interface{}{
		"body":      body,
		"edited":    true,
		"edited_at": editedAt.UTC(),
	})
}

func (r *GormMessageRepository) updateLive(ctx context.Context, id string, fields map[string]interface{}) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(fields)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldMessageID, id).Msg("failed to update message in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// UpdateSeenBy replaces the seen-by set.
func (r *GormMessageRepository) UpdateSeenBy(ctx context.Context, id string, seenBy []string) error {
	return r.updateColumn(ctx, id, "seen_by", database.StringArray(seenBy))
}

// UpdateReactions replaces the reaction list.
func (r *GormMessageRepository) UpdateReactions(ctx context.Context, id string, reactions []domain.Reaction) error {
	return r.updateColumn(ctx, id, "reactions", database.NewJSON(reactions))
}

// UpdateViewedBy replaces the viewed-by set.
func (r *GormMessageRepository) UpdateViewedBy(ctx context.Context, id string, viewedBy []string) error {
	return r.updateColumn(ctx, id, "viewed_by", database.StringArray(viewedBy))
}

func (r *GormMessageRepository) updateColumn(ctx context.Context, id, column string, value interface{}) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("id = ?", id).
		Update(column, value)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldMessageID, id).Str("column", column).Msg("failed to update message column")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ListExpired returns temporary messages whose expiry has passed and that
// are not deleted yet.
func (r *GormMessageRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Message, error) {
	l := log.Ctx(ctx)

	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("is_temporary = ? AND deleted = ? AND expires_at < ?", true, false, now.UTC()).
		Order("expires_at ASC").Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Msg("failed to list expired messages")
		return nil, err
	}
	return toDomainMessages(models), nil
}

// ClaimExpired marks the message deleted and expired if nobody else did.
func (r *GormMessageRepository) ClaimExpired(ctx context.Context, id string) (bool, error) {
	return r.claim(ctx, id,
		r.db.WithContext(ctx).Model(&domain.MessageModel{}).
			Where("id = ? AND is_temporary = ? AND deleted = ?", id, true, false),
		map[string]interface{}{"deleted": true, "expired": true},
	)
}

// ListDue returns scheduled messages whose time has come.
func (r *GormMessageRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Message, error) {
	l := log.Ctx(ctx)

	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("is_scheduled = ? AND dispatched = ? AND deleted = ? AND scheduled_at <= ?", true, false, false, now.UTC()).
		Order("scheduled_at ASC").Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Msg("failed to list due messages")
		return nil, err
	}
	return toDomainMessages(models), nil
}

// ClaimDispatch marks a scheduled message dispatched. A cancelled or
// deleted message cannot be claimed.
func (r *GormMessageRepository) ClaimDispatch(ctx context.Context, id string) (bool, error) {
	return r.claim(ctx, id,
		r.db.WithContext(ctx).Model(&domain.MessageModel{}).
			Where("id = ? AND is_scheduled = ? AND dispatched = ? AND deleted = ?", id, true, false, false),
		map[string]interface{}{"dispatched": true},
	)
}

// CancelScheduled withdraws a scheduled message that has not been
// dispatched.
func (r *GormMessageRepository) CancelScheduled(ctx context.Context, id string) (bool, error) {
	return r.claim(ctx, id,
		r.db.WithContext(ctx).Model(&domain.MessageModel{}).
			Where("id = ? AND is_scheduled = ? AND dispatched = ?", id, true, false),
		map[string]interface{}{"is_scheduled": false, "deleted": true},
	)
}

func (r *GormMessageRepository) claim(ctx context.Context, id string, query *gorm.DB, fields map[string]interface{}) (bool, error) {
	l := log.Ctx(ctx)

	result := query.Updates(fields)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldMessageID, id).Msg("failed to claim message")
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func toDomainMessages(models []domain.MessageModel) []*domain.Message {
	msgs := make([]*domain.Message, len(models))
	for i := range models {
		msgs[i] = models[i].ToDomain()
	}
	return msgs
}
