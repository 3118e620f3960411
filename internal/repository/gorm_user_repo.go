package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/pkg/log"
)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Touch inserts an empty profile for username unless one exists.
func (r *GormUserRepository) Touch(ctx context.Context, username string) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.UserModel{Username: username}).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to upsert user in db")
		return err
	}
	return nil
}

// GetByUsername retrieves a profile.
func (r *GormUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	l := log.Ctx(ctx)

	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldUsername, username).Msg("failed to get user")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// List returns every known profile ordered by name.
func (r *GormUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	l := log.Ctx(ctx)

	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Order("username ASC").Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list users from db")
		return nil, err
	}

	users := make([]*domain.User, len(models))
	for i := range models {
		users[i] = models[i].ToDomain()
	}
	return users, nil
}

// UpdateProfile sets the non-nil fields and returns the updated profile.
func (r *GormUserRepository) UpdateProfile(ctx context.Context, username string, bio, avatarURL *string) (*domain.User, error) {
	l := log.Ctx(ctx)

	fields := map[string]interface{}{}
	if bio != nil {
		fields["bio"] = *bio
	}
	if avatarURL != nil {
		fields["avatar_url"] = *avatarURL
	}

	if len(fields) > 0 {
		result := r.db.WithContext(ctx).Model(&domain.UserModel{}).
			Where("username = ?", username).
			Updates(fields)
		if result.Error != nil {
			l.Error().Err(result.Error).Str(log.FieldUsername, username).Msg("failed to update profile")
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}
	return r.GetByUsername(ctx, username)
}
