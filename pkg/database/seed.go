package database

import (
	"errors"
	"log"

	"medbridge/internal/domain/identity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedUser describes one mirrored identity to create for local development.
type SeedUser struct {
	ID        string
	Role      identity.Role
	FirstName string
	LastName  string
}

// DefaultDevUsers are stable ids so issued dev tokens survive a reseed.
func DefaultDevUsers() []SeedUser {
	return []SeedUser{
		{ID: "dev-doctor-1", Role: identity.RoleResponder, FirstName: "Amina", LastName: "Haddad"},
		{ID: "dev-doctor-2", Role: identity.RoleResponder, FirstName: "Karim", LastName: "Benali"},
		{ID: "dev-patient-1", Role: identity.RoleRequester, FirstName: "Sara", LastName: "Mansour"},
		{ID: "dev-patient-2", Role: identity.RoleRequester, FirstName: "Youssef", LastName: "Trabelsi"},
	}
}

// SeedDevelopment upserts users into db. Existing rows keep their push
// tokens.
func SeedDevelopment(db *gorm.DB, users []SeedUser) ([]identity.User, error) {
	if db == nil {
		return nil, errors.New("database not connected")
	}

	out := make([]identity.User, 0, len(users))
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, u := range users {
			row := identity.User{
				ID:        u.ID,
				Role:      string(u.Role),
				FirstName: u.FirstName,
				LastName:  u.LastName,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"role", "first_name", "last_name", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Seeded %d users", len(out))
	return out, nil
}
