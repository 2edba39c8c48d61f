// Package seed bootstraps the first partner account so a fresh install
// has someone who can log in and create the rest of the team.
package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	userdomain "github.com/numericalz/practicehub/internal/user/domain"
)

// EnsureBootstrapPartner creates the partner account named in the
// bootstrap config if no user with that email exists yet. An existing
// user is left untouched, whatever their role.
func EnsureBootstrapPartner(db *gorm.DB, email, password string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("bootstrap partner email is required")
	}
	if password == "" {
		return errors.New("bootstrap partner password is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing userdomain.User
		err := tx.WithContext(ctx).Where("email = ?", email).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user := userdomain.User{
			ID:           node.Generate(),
			Name:         "Practice Partner",
			Email:        email,
			Role:         userdomain.RolePartner,
			PasswordHash: string(hash),
			IsActive:     true,
		}
		return tx.WithContext(ctx).Create(&user).Error
	})
}
