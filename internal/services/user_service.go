package services

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/shelby-app/shelby/internal/db"
	"github.com/shelby-app/shelby/internal/models"
	"github.com/shelby-app/shelby/internal/validation"
)

// UserService manages user accounts. Sessions and cookies live in the
// external layer; the core only stores hashes and verifies credentials.
type UserService struct {
	db *gorm.DB
}

func NewUserService(conn *gorm.DB) *UserService { return &UserService{db: conn} }

// Create registers a user with a bcrypt-hashed password.
func (s *UserService) Create(username, password string) (*models.User, error) {
	v := validation.Violations{}
	validation.Required("username", username, v)
	validation.MaxLen("username", username, 255, v)
	validation.MinLen("password", password, 8, v)
	if err := violationsToError(v); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{Username: username, Password: string(hash)}
	err = db.Transact(s.db, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("username %q taken: %w", username, ErrConflict)
		}
		if err := tx.Create(&user).Error; err != nil {
			if db.IsConstraintViolation(err) {
				return fmt.Errorf("username %q taken: %w", username, ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies the credentials and returns the user. Unknown
// username and wrong password are indistinguishable to the caller.
func (s *UserService) Authenticate(username, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get returns the user with the given id.
func (s *UserService) Get(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ChangePassword replaces the user's password hash.
func (s *UserService) ChangePassword(id uint, password string) error {
	v := validation.Violations{}
	validation.MinLen("password", password, 8, v)
	if err := violationsToError(v); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res := s.db.Model(&models.User{}).Where("id = ?", id).Update("password", string(hash))
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// List returns one page of users.
func (s *UserService) List(p Pagination) ([]models.User, bool, bool, error) {
	return listPage[models.User](s.db.Model(&models.User{}), p,
		[]string{"id", "username", "created_at"})
}
