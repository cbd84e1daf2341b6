package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shelby-app/shelby/internal/db"
	"github.com/shelby-app/shelby/internal/models"
	"github.com/shelby-app/shelby/internal/validation"
)

type GroupService struct {
	db *gorm.DB
}

func NewGroupService(conn *gorm.DB) *GroupService { return &GroupService{db: conn} }

func (s *GroupService) Create(description string) (*models.Group, error) {
	v := validation.Violations{}
	validation.Required("description", description, v)
	validation.MaxLen("description", description, 255, v)
	if err := violationsToError(v); err != nil {
		return nil, err
	}
	group := models.Group{Description: description}
	if err := s.db.Create(&group).Error; err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return &group, nil
}

func (s *GroupService) Get(id uint) (*models.Group, error) {
	var group models.Group
	err := s.db.First(&group, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &group, nil
}

func (s *GroupService) Update(id uint, description string) (*models.Group, error) {
	v := validation.Violations{}
	validation.Required("description", description, v)
	if err := violationsToError(v); err != nil {
		return nil, err
	}
	var group models.Group
	err := db.Transact(s.db, func(tx *gorm.DB) error {
		if err := tx.First(&group, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("group %d: %w", id, ErrNotFound)
			}
			return err
		}
		group.Description = description
		return tx.Save(&group).Error
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// Delete removes a group. Groups with members are refused; memberships never
// cascade.
func (s *GroupService) Delete(id uint) error {
	return db.Transact(s.db, func(tx *gorm.DB) error {
		var members int64
		if err := tx.Model(&models.Membership{}).Where("group_id = ?", id).Count(&members).Error; err != nil {
			return err
		}
		if members > 0 {
			return fmt.Errorf("group %d has %d members: %w", id, members, ErrConflict)
		}
		res := tx.Delete(&models.Group{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("group %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (s *GroupService) List(p Pagination) ([]models.Group, bool, bool, error) {
	return listPage[models.Group](s.db.Model(&models.Group{}), p,
		[]string{"id", "description", "created_at"})
}

// AddMember links a person to a group. Double submission is safe: the second
// call surfaces ErrConflict and the store keeps exactly one row for the pair.
func (s *GroupService) AddMember(groupID, personID uint, comment string) (*models.Membership, error) {
	var membership models.Membership
	err := db.Transact(s.db, func(tx *gorm.DB) error {
		var person models.Person
		if err := tx.First(&person, personID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("person %d: %w", personID, ErrNotFound)
			}
			return err
		}
		var group models.Group
		if err := tx.First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("group %d: %w", groupID, ErrNotFound)
			}
			return err
		}
		var existing int64
		if err := tx.Model(&models.Membership{}).
			Where("person_id = ? AND group_id = ?", personID, groupID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("person %d already in group %d: %w", personID, groupID, ErrConflict)
		}
		membership = models.Membership{PersonID: personID, GroupID: groupID, Comment: comment}
		if err := tx.Create(&membership).Error; err != nil {
			// The unique index backs up the precheck against a racing writer.
			if db.IsConstraintViolation(err) {
				return fmt.Errorf("person %d already in group %d: %w", personID, groupID, ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// RemoveMember deletes exactly one membership row. Person, group and all
// unrelated memberships are untouched; removing twice surfaces ErrNotFound.
func (s *GroupService) RemoveMember(membershipID uint) error {
	res := s.db.Delete(&models.Membership{}, membershipID)
	if res.Error != nil {
		return fmt.Errorf("remove membership: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("membership %d: %w", membershipID, ErrNotFound)
	}
	return nil
}

// Members lists one page of a group's memberships with the person loaded.
func (s *GroupService) Members(groupID uint, p Pagination) ([]models.Membership, bool, bool, error) {
	if _, err := s.Get(groupID); err != nil {
		return nil, false, false, err
	}
	return listPage[models.Membership](
		s.db.Model(&models.Membership{}).Where("group_id = ?", groupID).Preload("Person"),
		p, []string{"id", "person_id", "created_at"})
}

// MembershipsOf lists one page of a person's memberships with the group loaded.
func (s *GroupService) MembershipsOf(personID uint, p Pagination) ([]models.Membership, bool, bool, error) {
	var person models.Person
	if err := s.db.First(&person, personID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, false, fmt.Errorf("person %d: %w", personID, ErrNotFound)
		}
		return nil, false, false, err
	}
	return listPage[models.Membership](
		s.db.Model(&models.Membership{}).Where("person_id = ?", personID).Preload("Group"),
		p, []string{"id", "group_id", "created_at"})
}
