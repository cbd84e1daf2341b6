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

// PostInput describes a single posting against an account.
type PostInput struct {
	AccountID   uint
	Amount      models.Amount
	Description string
	Date        time.Time

	// DocumentID optionally names the evidence document.
	DocumentID *uint
}

// AccountInput carries the user-editable fields of an account.
type AccountInput struct {
	Code         uint
	Name         string
	CategoryID   uint
	CostCenterID uint
}

// SummaryRow is one line of the grouped report: the posted total of one
// account under its category and cost center.
type SummaryRow struct {
	AccountID      uint          `json:"account_id"`
	AccountName    string        `json:"account"`
	CategoryName   string        `json:"category"`
	CostCenterName string        `json:"cost_center"`
	Total          models.Amount `json:"total"`
}

// LedgerService posts entries and keeps balance aggregation consistent. The
// entry ledger is the single source of truth; Account.Balance is a cached
// view reconciled against it inside every posting transaction.
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(conn *gorm.DB) *LedgerService { return &LedgerService{db: conn} }

// Post inserts an entry and updates the owning account's cached balance in
// one transaction. Zero amounts are rejected as no-ops.
func (s *LedgerService) Post(in PostInput) (*models.Entry, error) {
	if in.Amount.IsZero() {
		return nil, fmt.Errorf("zero-amount entry: %w", ErrInvalidAmount)
	}
	v := validation.Violations{}
	validation.MaxLen("description", in.Description, 500, v)
	if err := violationsToError(v); err != nil {
		return nil, err
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}

	entry := models.Entry{
		Date:        date,
		Description: in.Description,
		Amount:      in.Amount,
		AccountID:   in.AccountID,
		DocumentID:  in.DocumentID,
	}
	err := db.Transact(s.db, func(tx *gorm.DB) error {
		return s.post(tx, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Reverse posts a new entry negating the given one, with a reference back to
// the original. The original row is never mutated or deleted; the ledger is
// an append-only audit trail.
func (s *LedgerService) Reverse(entryID uint) (*models.Entry, error) {
	var reversal models.Entry
	err := db.Transact(s.db, func(tx *gorm.DB) error {
		var original models.Entry
		if err := tx.First(&original, entryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("entry %d: %w", entryID, ErrNotFound)
			}
			return err
		}
		reversal = models.Entry{
			Date:        time.Now(),
			Description: "Reversal of entry " + fmt.Sprint(original.ID) + ": " + original.Description,
			Amount:      original.Amount.Neg(),
			AccountID:   original.AccountID,
			DocumentID:  original.DocumentID,
			ReversesID:  &original.ID,
		}
		return s.post(tx, &reversal)
	})
	if err != nil {
		return nil, err
	}
	return &reversal, nil
}

// post inserts the entry and maintains the cached balance, then cross-checks
// cache against ledger. A mismatch rolls the transaction back; it means a
// writer bypassed the engine.
func (s *LedgerService) post(tx *gorm.DB, entry *models.Entry) error {
	var account models.Account
	if err := tx.First(&account, entry.AccountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("account %d: %w", entry.AccountID, ErrNotFound)
		}
		return err
	}
	if entry.DocumentID != nil {
		var docs int64
		if err := tx.Model(&models.Document{}).Where("id = ?", *entry.DocumentID).Count(&docs).Error; err != nil {
			return err
		}
		if docs == 0 {
			return fmt.Errorf("document %d: %w", *entry.DocumentID, ErrNotFound)
		}
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	if err := tx.Model(&models.Account{}).Where("id = ?", account.ID).
		Update("balance", gorm.Expr("balance + ?", entry.Amount.Cents())).Error; err != nil {
		return fmt.Errorf("update cached balance: %w", err)
	}

	var ledgerSum int64
	if err := tx.Model(&models.Entry{}).Where("account_id = ?", account.ID).
		Select("COALESCE(SUM(amount), 0)").Scan(&ledgerSum).Error; err != nil {
		return err
	}
	var cached models.Account
	if err := tx.First(&cached, account.ID).Error; err != nil {
		return err
	}
	if cached.Balance.Cents() != ledgerSum {
		return &ConsistencyError{
			Entity: "account",
			Key:    fmt.Sprint(account.ID),
			Detail: fmt.Sprintf("cached balance %d disagrees with ledger sum %d", cached.Balance.Cents(), ledgerSum),
		}
	}
	return nil
}

// Balance returns the account's balance from the cached field, which Post
// keeps reconciled with the ledger.
func (s *LedgerService) Balance(accountID uint) (models.Amount, error) {
	var account models.Account
	err := s.db.First(&account, accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("account %d: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get account: %w", err)
	}
	return account.Balance, nil
}

// CategoryTotal sums the balances of the category's accounts.
func (s *LedgerService) CategoryTotal(categoryID uint) (models.Amount, error) {
	if err := s.mustExist(&models.Category{}, categoryID, "category"); err != nil {
		return 0, err
	}
	var total int64
	err := s.db.Model(&models.Account{}).Where("category_id = ?", categoryID).
		Select("COALESCE(SUM(balance), 0)").Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("category total: %w", err)
	}
	return models.Amount(total), nil
}

// CostCenterTotal sums the balances of the cost center's accounts.
func (s *LedgerService) CostCenterTotal(costCenterID uint) (models.Amount, error) {
	if err := s.mustExist(&models.CostCenter{}, costCenterID, "cost center"); err != nil {
		return 0, err
	}
	var total int64
	err := s.db.Model(&models.Account{}).Where("cost_center_id = ?", costCenterID).
		Select("COALESCE(SUM(balance), 0)").Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("cost center total: %w", err)
	}
	return models.Amount(total), nil
}

// Summary reports the posted total per account, with category and cost
// center names, ordered by cost center, category, then account.
func (s *LedgerService) Summary() ([]SummaryRow, error) {
	var rows []SummaryRow
	err := s.db.Model(&models.Entry{}).
		Select("entries.account_id AS account_id, accounts.name AS account_name, categories.name AS category_name, cost_centers.name AS cost_center_name, COALESCE(SUM(entries.amount), 0) AS total").
		Joins("INNER JOIN accounts ON accounts.id = entries.account_id").
		Joins("INNER JOIN categories ON categories.id = accounts.category_id").
		Joins("INNER JOIN cost_centers ON cost_centers.id = accounts.cost_center_id").
		Group("entries.account_id").
		Order("cost_centers.id, categories.id, accounts.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return rows, nil
}

func (s *LedgerService) CreateCostCenter(name string) (*models.CostCenter, error) {
	if err := requireName(name); err != nil {
		return nil, err
	}
	cc := models.CostCenter{Name: name}
	if err := s.db.Create(&cc).Error; err != nil {
		return nil, fmt.Errorf("create cost center: %w", err)
	}
	return &cc, nil
}

func (s *LedgerService) CreateCategory(name string) (*models.Category, error) {
	if err := requireName(name); err != nil {
		return nil, err
	}
	cat := models.Category{Name: name}
	if err := s.db.Create(&cat).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &cat, nil
}

func (s *LedgerService) CreateAccount(in AccountInput) (*models.Account, error) {
	if err := requireName(in.Name); err != nil {
		return nil, err
	}
	var account models.Account
	err := db.Transact(s.db, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Category{}).Where("id = ?", in.CategoryID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("category %d: %w", in.CategoryID, ErrNotFound)
		}
		if err := tx.Model(&models.CostCenter{}).Where("id = ?", in.CostCenterID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("cost center %d: %w", in.CostCenterID, ErrNotFound)
		}
		account = models.Account{
			Code:         in.Code,
			Name:         in.Name,
			CategoryID:   in.CategoryID,
			CostCenterID: in.CostCenterID,
		}
		return tx.Create(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *LedgerService) GetAccount(id uint) (*models.Account, error) {
	var account models.Account
	err := s.db.First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// DeleteAccount refuses while any entry references the account, whatever the
// current balance: the ledger is append-only, so an account that has ever
// been posted to stays.
func (s *LedgerService) DeleteAccount(id uint) error {
	return db.Transact(s.db, func(tx *gorm.DB) error {
		var entries int64
		if err := tx.Model(&models.Entry{}).Where("account_id = ?", id).Count(&entries).Error; err != nil {
			return err
		}
		if entries > 0 {
			return fmt.Errorf("account %d has %d entries: %w", id, entries, ErrConflict)
		}
		res := tx.Delete(&models.Account{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("account %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// DeleteCategory refuses while accounts reference the category.
func (s *LedgerService) DeleteCategory(id uint) error {
	return db.Transact(s.db, func(tx *gorm.DB) error {
		var accounts int64
		if err := tx.Model(&models.Account{}).Where("category_id = ?", id).Count(&accounts).Error; err != nil {
			return err
		}
		if accounts > 0 {
			return fmt.Errorf("category %d has %d accounts: %w", id, accounts, ErrConflict)
		}
		res := tx.Delete(&models.Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("category %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// DeleteCostCenter refuses while accounts reference the cost center.
func (s *LedgerService) DeleteCostCenter(id uint) error {
	return db.Transact(s.db, func(tx *gorm.DB) error {
		var accounts int64
		if err := tx.Model(&models.Account{}).Where("cost_center_id = ?", id).Count(&accounts).Error; err != nil {
			return err
		}
		if accounts > 0 {
			return fmt.Errorf("cost center %d has %d accounts: %w", id, accounts, ErrConflict)
		}
		res := tx.Delete(&models.CostCenter{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("cost center %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (s *LedgerService) ListAccounts(p Pagination) ([]models.Account, bool, bool, error) {
	return listPage[models.Account](s.db.Model(&models.Account{}), p,
		[]string{"id", "code", "name", "balance", "created_at"})
}

func (s *LedgerService) ListCategories(p Pagination) ([]models.Category, bool, bool, error) {
	return listPage[models.Category](s.db.Model(&models.Category{}), p,
		[]string{"id", "name", "created_at"})
}

func (s *LedgerService) ListCostCenters(p Pagination) ([]models.CostCenter, bool, bool, error) {
	return listPage[models.CostCenter](s.db.Model(&models.CostCenter{}), p,
		[]string{"id", "name", "created_at"})
}

// ListEntries returns one page of the ledger, optionally limited to one
// account (accountID 0 means all).
func (s *LedgerService) ListEntries(accountID uint, p Pagination) ([]models.Entry, bool, bool, error) {
	tx := s.db.Model(&models.Entry{})
	if accountID != 0 {
		tx = tx.Where("account_id = ?", accountID)
	}
	return listPage[models.Entry](tx, p, []string{"id", "date", "amount", "created_at"})
}

func (s *LedgerService) mustExist(model any, id uint, kind string) error {
	var count int64
	if err := s.db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}

func requireName(name string) error {
	v := validation.Violations{}
	validation.Required("name", name, v)
	validation.MaxLen("name", name, 255, v)
	return violationsToError(v)
}
