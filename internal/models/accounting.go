package models

import "time"

// CostCenter is the top-level grouping for budget reporting.
type CostCenter struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `gorm:"size:255;not null" json:"name"`
}

// Category groups accounts below a cost center.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `gorm:"size:255;not null" json:"name"`
}

// Account is a ledger account accumulating signed entry amounts. Balance is a
// cached aggregate over the entry ledger; the ledger itself stays the single
// source of truth and the two are reconciled inside every posting
// transaction.
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Code is the numeric chart-of-accounts code, e.g. 1800.
	Code uint   `gorm:"not null" json:"code"`
	Name string `gorm:"size:255;not null" json:"name"`

	CategoryID   uint        `gorm:"index;not null" json:"category_id"`
	Category     *Category   `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	CostCenterID uint        `gorm:"index;not null" json:"cost_center_id"`
	CostCenter   *CostCenter `gorm:"foreignKey:CostCenterID" json:"cost_center,omitempty"`

	Balance Amount `gorm:"not null;default:0" json:"balance"`
}

// Entry is an immutable, dated, signed posting against one account.
// Corrections happen via a reversing entry, never by editing the row; there
// is no UpdatedAt on purpose.
type Entry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Date        time.Time `gorm:"not null;index" json:"date"`
	Description string    `gorm:"size:500;not null" json:"description"`
	Amount      Amount    `gorm:"not null" json:"amount"`

	AccountID uint     `gorm:"index;not null" json:"account_id"`
	Account   *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`

	// DocumentID optionally points at the evidence document for the posting.
	DocumentID *uint     `gorm:"index" json:"document_id,omitempty"`
	Document   *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`

	// ReversesID is set on a reversal and points back at the original entry.
	ReversesID *uint  `gorm:"index" json:"reverses_id,omitempty"`
	Reverses   *Entry `gorm:"foreignKey:ReversesID" json:"-"`
}
