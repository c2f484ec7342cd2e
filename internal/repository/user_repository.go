package repository

import (
	"context"

	"medbridge/internal/domain/identity"
	medbridge_errors "medbridge/pkg/errors"

	"gorm.io/gorm"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *identity.User) error {
	return translate(r.db.WithContext(ctx).Create(u).Error, "user")
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (identity.User, error) {
	var u identity.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		return identity.User{}, translate(err, "user")
	}
	return u, nil
}

func (r *PostgresUserRepository) ListByRole(ctx context.Context, role identity.Role) ([]identity.User, error) {
	var users []identity.User
	err := r.db.WithContext(ctx).
		Where("role = ?", string(role)).
		Order("last_name ASC, first_name ASC").
		Find(&users).Error
	return users, err
}

func (r *PostgresUserRepository) UpdatePushToken(ctx context.Context, id string, token *string) error {
	res := r.db.WithContext(ctx).
		Model(&identity.User{}).
		Where("id = ?", id).
		Update("push_token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return medbridge_errors.NotFound("user not found")
	}
	return nil
}
