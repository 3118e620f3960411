package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/database"
	"github.com/weiawesome/wes-chat/pkg/log"
)

// GormGroupRepository implements GroupRepository using GORM.
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGormGroupRepository creates a new GORM-based group repository.
func NewGormGroupRepository(db *gorm.DB) *GormGroupRepository {
	return &GormGroupRepository{db: db}
}

// Create stores a new group. Names are unique.
func (r *GormGroupRepository) Create(ctx context.Context, g *domain.Group) error {
	l := log.Ctx(ctx)

	model := domain.GroupToModel(g)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.GroupModel{}).Where("name = ?", g.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrGroupExists
		}
		return tx.Create(model).Error
	})
	if err != nil {
		if !errors.Is(err, ErrGroupExists) {
			l.Error().Err(err).Str(log.FieldGroup, g.Name).Msg("failed to create group in db")
		}
		return err
	}

	g.CreatedAt = model.CreatedAt.UTC()
	l.Debug().Str(log.FieldGroup, g.Name).Msg("group created in db")
	return nil
}

// GetByName retrieves a group by name.
func (r *GormGroupRepository) GetByName(ctx context.Context, name string) (*domain.Group, error) {
	l := log.Ctx(ctx)

	var model domain.GroupModel
	result := r.db.WithContext(ctx).First(&model, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldGroup, name).Msg("failed to get group by name")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// List returns every group ordered by creation time.
func (r *GormGroupRepository) List(ctx context.Context) ([]*domain.Group, error) {
	l := log.Ctx(ctx)

	var models []domain.GroupModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("name ASC").Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list groups from db")
		return nil, err
	}

	groups := make([]*domain.Group, len(models))
	for i := range models {
		groups[i] = models[i].ToDomain()
	}
	return groups, nil
}

// ListForMember returns the groups member belongs to. The member column is
// a JSON document, so the LIKE prefilter is confirmed in memory.
func (r *GormGroupRepository) ListForMember(ctx context.Context, member string) ([]*domain.Group, error) {
	l := log.Ctx(ctx)

	var models []domain.GroupModel
	err := r.db.WithContext(ctx).
		Where("members LIKE ?", "%\""+member+"\"%").
		Order("created_at ASC").Order("name ASC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldUsername, member).Msg("failed to list member groups")
		return nil, err
	}

	groups := make([]*domain.Group, 0, len(models))
	for i := range models {
		if g := models[i].ToDomain(); g.IsMember(member) {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// UpdateMembers replaces the member and admin sets.
func (r *GormGroupRepository) UpdateMembers(ctx context.Context, name string, members, admins []string) error {
	return r.update(ctx, name, map[string]interface{}{
		"members": database.StringArray(members),
		"admins":  database.StringArray(admins),
	})
}

// UpdateAdmins replaces the admin set.
func (r *GormGroupRepository) UpdateAdmins(ctx context.Context, name string, admins []string) error {
	return r.update(ctx, name, map[string]interface{}{"admins": database.StringArray(admins)})
}

// UpdateDescription sets the description.
func (r *GormGroupRepository) UpdateDescription(ctx context.Context, name, description string) error {
	return r.update(ctx, name, map[string]interface{}{"description": description})
}

// UpdateAvatar sets the avatar URL.
func (r *GormGroupRepository) UpdateAvatar(ctx context.Context, name, avatarURL string) error {
	return r.update(ctx, name, map[string]interface{}{"avatar_url": avatarURL})
}

func (r *GormGroupRepository) update(ctx context.Context, name string, fields map[string]interface{}) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.GroupModel{}).
		Where("name = ?", name).
		Updates(fields)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldGroup, name).Msg("failed to update group in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// Rename moves the group and everything addressed to it to newName.
func (r *GormGroupRepository) Rename(ctx context.Context, oldName, newName string) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.GroupModel{}).Where("name = ?", newName).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrGroupExists
		}

		result := tx.Model(&domain.GroupModel{}).Where("name = ?", oldName).Update("name", newName)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrGroupNotFound
		}

		if err := tx.Model(&domain.MessageModel{}).
			Where("kind = ? AND target = ?", string(domain.DestinationGroup), oldName).
			Update("target", newName).Error; err != nil {
			return err
		}
		return tx.Model(&domain.PollModel{}).
			Where("group_name = ?", oldName).
			Update("group_name", newName).Error
	})
	if err != nil {
		if !errors.Is(err, ErrGroupExists) && !errors.Is(err, ErrGroupNotFound) {
			l.Error().Err(err).Str(log.FieldGroup, oldName).Msg("failed to rename group in db")
		}
		return err
	}

	l.Debug().Str(log.FieldGroup, newName).Str("old_name", oldName).Msg("group renamed in db")
	return nil
}

// Delete removes the group, its messages and its polls.
func (r *GormGroupRepository) Delete(ctx context.Context, name string) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("name = ?", name).Delete(&domain.GroupModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrGroupNotFound
		}

		if err := tx.Where("kind = ? AND target = ?", string(domain.DestinationGroup), name).
			Delete(&domain.MessageModel{}).Error; err != nil {
			return err
		}
		return tx.Where("group_name = ?", name).Delete(&domain.PollModel{}).Error
	})
	if err != nil {
		if !errors.Is(err, ErrGroupNotFound) {
			l.Error().Err(err).Str(log.FieldGroup, name).Msg("failed to delete group from db")
		}
		return err
	}

	l.Debug().Str(log.FieldGroup, name).Msg("group deleted from db")
	return nil
}

// SavePinState writes the group's pinned list together with the pin
// fields of every message in msgs.
func (r *GormGroupRepository) SavePinState(ctx context.Context, g *domain.Group, msgs []*domain.Message) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.GroupModel{}).
			Where("name = ?", g.Name).
			Update("pinned_messages", database.StringArray(g.PinnedMessages))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrGroupNotFound
		}

		for _, m := range msgs {
			fields := map[string]interface{}{
				"pinned":    m.Pinned,
				"pinned_by": m.PinnedBy,
				"pinned_at": nil,
				"pin_order": nil,
			}
			if m.Pinned {
				fields["pinned_at"] = m.PinnedAt.UTC()
				fields["pin_order"] = m.PinOrder
			}
			if err := tx.Model(&domain.MessageModel{}).Where("id = ?", m.ID).Updates(fields).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrGroupNotFound) {
			l.Error().Err(err).Str(log.FieldGroup, g.Name).Msg("failed to save pin state")
		}
		return err
	}
	return nil
}
