package seed

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	userdomain "github.com/numericalz/practicehub/internal/user/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&userdomain.User{}))
	return db
}

func TestEnsureBootstrapPartner(t *testing.T) {
	db := newTestDB(t)

	assert.NoError(t, EnsureBootstrapPartner(db, "Partner@Numericalz.co.uk", "opening-balance"))

	var user userdomain.User
	assert.NoError(t, db.Where("email = ?", "partner@numericalz.co.uk").First(&user).Error)
	assert.Equal(t, userdomain.RolePartner, user.Role)
	assert.True(t, user.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("opening-balance")))

	t.Run("existing user is untouched", func(t *testing.T) {
		assert.NoError(t, db.Model(&user).Update("role", userdomain.RoleStaff).Error)

		assert.NoError(t, EnsureBootstrapPartner(db, "partner@numericalz.co.uk", "different-password"))

		var again userdomain.User
		assert.NoError(t, db.Where("email = ?", "partner@numericalz.co.uk").First(&again).Error)
		assert.Equal(t, user.ID, again.ID)
		assert.Equal(t, userdomain.RoleStaff, again.Role)

		var count int64
		assert.NoError(t, db.Model(&userdomain.User{}).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})

	t.Run("blank email rejected", func(t *testing.T) {
		assert.Error(t, EnsureBootstrapPartner(db, "  ", "pw"))
	})

	t.Run("blank password rejected", func(t *testing.T) {
		assert.Error(t, EnsureBootstrapPartner(db, "other@numericalz.co.uk", ""))
	})
}
