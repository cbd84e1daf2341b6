package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shelby-app/shelby/internal/db"
	"github.com/shelby-app/shelby/internal/models"
	"github.com/shelby-app/shelby/internal/validation"
)

// PersonInput carries the user-editable fields of a person.
type PersonInput struct {
	Name     string
	Address  string
	Email    string
	Birthday *time.Time
	Comment  string
}

func (in PersonInput) validate() error {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.MaxLen("email", in.Email, 255, v)
	return violationsToError(v)
}

type PersonService struct {
	db *gorm.DB
}

func NewPersonService(conn *gorm.DB) *PersonService { return &PersonService{db: conn} }

func (s *PersonService) Create(in PersonInput) (*models.Person, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	person := models.Person{
		Name:     in.Name,
		Address:  in.Address,
		Email:    in.Email,
		Birthday: in.Birthday,
		Comment:  in.Comment,
	}
	if err := s.db.Create(&person).Error; err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	return &person, nil
}

func (s *PersonService) Get(id uint) (*models.Person, error) {
	var person models.Person
	err := s.db.First(&person, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("person %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return &person, nil
}

func (s *PersonService) Update(id uint, in PersonInput) (*models.Person, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var person models.Person
	err := db.Transact(s.db, func(tx *gorm.DB) error {
		if err := tx.First(&person, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("person %d: %w", id, ErrNotFound)
			}
			return err
		}
		person.Name = in.Name
		person.Address = in.Address
		person.Email = in.Email
		person.Birthday = in.Birthday
		person.Comment = in.Comment
		return tx.Save(&person).Error
	})
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// Delete removes a person. It is refused while the person is still referenced
// by memberships or owns documents; those rows must go first.
func (s *PersonService) Delete(id uint) error {
	return db.Transact(s.db, func(tx *gorm.DB) error {
		var memberships int64
		if err := tx.Model(&models.Membership{}).Where("person_id = ?", id).Count(&memberships).Error; err != nil {
			return err
		}
		if memberships > 0 {
			return fmt.Errorf("person %d has %d memberships: %w", id, memberships, ErrConflict)
		}
		var documents int64
		if err := tx.Model(&models.Document{}).
			Where("owner_type = ? AND owner_id = ?", models.DocumentOwnerPerson, id).
			Count(&documents).Error; err != nil {
			return err
		}
		if documents > 0 {
			return fmt.Errorf("person %d owns %d documents: %w", id, documents, ErrConflict)
		}
		res := tx.Delete(&models.Person{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("person %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// List returns one page of persons plus previous/next availability flags.
func (s *PersonService) List(p Pagination) ([]models.Person, bool, bool, error) {
	return listPage[models.Person](s.db.Model(&models.Person{}), p,
		[]string{"id", "name", "email", "created_at"})
}
