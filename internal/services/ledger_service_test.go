package services

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/shelby-app/shelby/internal/models"
)

// seedChart creates one cost center, one category and one account.
func seedChart(t *testing.T, ledger *LedgerService) (*models.CostCenter, *models.Category, *models.Account) {
	t.Helper()
	cc, err := ledger.CreateCostCenter("Operations")
	if err != nil {
		t.Fatalf("create cost center: %v", err)
	}
	cat, err := ledger.CreateCategory("General")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	account, err := ledger.CreateAccount(AccountInput{
		Code: 1800, Name: "Cash", CategoryID: cat.ID, CostCenterID: cc.ID,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return cc, cat, account
}

func TestPostAccumulatesBalance(t *testing.T) {
	conn := setupTestDB(t)
	ledger := NewLedgerService(conn)
	cc, cat, cash := seedChart(t, ledger)

	if _, err := ledger.Post(PostInput{AccountID: cash.ID, Amount: models.AmountFromUnits(500), Description: "dues"}); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := ledger.Post(PostInput{AccountID: cash.ID, Amount: models.AmountFromUnits(-120), Description: "supplies"}); err != nil {
		t.Fatalf("post: %v", err)
	}

	balance, err := ledger.Balance(cash.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != models.AmountFromUnits(380) {
		t.Fatalf("balance = %v, want 380.00", balance)
	}

	catTotal, err := ledger.CategoryTotal(cat.ID)
	if err != nil {
		t.Fatalf("category total: %v", err)
	}
	if catTotal != models.AmountFromUnits(380) {
		t.Fatalf("category total = %v, want 380.00", catTotal)
	}

	ccTotal, err := ledger.CostCenterTotal(cc.ID)
	if err != nil {
		t.Fatalf("cost center total: %v", err)
	}
	if ccTotal != models.AmountFromUnits(380) {
		t.Fatalf("cost center total = %v, want 380.00", ccTotal)
	}
}

func TestPostValidation(t *testing.T) {
	conn := setupTestDB(t)
	ledger := NewLedgerService(conn)
	_, _, cash := seedChart(t, ledger)

	if _, err := ledger.Post(PostInput{AccountID: cash.ID, Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := ledger.Post(PostInput{AccountID: 999, Amount: models.AmountFromUnits(10)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown account: expected ErrNotFound, got %v", err)
	}
	missing := uint(12345)
	if _, err := ledger.Post(PostInput{AccountID: cash.ID, Amount: models.AmountFromUnits(10), DocumentID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown document: expected ErrNotFound, got %v", err)
	}

	// Failed postings must not move the balance.
	balance, err := ledger.Balance(cash.ID)
	if err != nil || !balance.IsZero() {
		t.Fatalf("balance after failed posts = %v, %v", balance, err)
	}
}

func TestReverseKeepsLedgerConsistent(t *testing.T) {
	conn := setupTestDB(t)
	ledger := NewLedgerService(conn)
	cc, cat, cash := seedChart(t, ledger)

	entry, err := ledger.Post(PostInput{AccountID: cash.ID, Amount: models.AmountFromUnits(250), Description: "donation"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	reversal, err := ledger.Reverse(entry.ID)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if reversal.Amount != entry.Amount.Neg() {
		t.Fatalf("reversal amount = %v, want %v", reversal.Amount, entry.Amount.Neg())
	}
	if reversal.ReversesID == nil || *reversal.ReversesID != entry.ID {
		t.Fatalf("reversal missing back reference: %+v", reversal)
	}

	// The original row is untouched and both rows are in the ledger.
	var original models.Entry
	if err := conn.First(&original, entry.ID).Error; err != nil {
		t.Fatalf("original gone: %v", err)
	}
	if original.Amount != entry.Amount {
		t.Fatalf("original mutated: %v", original.Amount)
	}
	var count int64
	conn.Model(&models.Entry{}).Where("account_id = ?", cash.ID).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 entries, got %d", count)
	}

	balance, err := ledger.Balance(cash.ID)
	if err != nil || !balance.IsZero() {
		t.Fatalf("balance after reversal = %v, %v", balance, err)
	}
	if total, _ := ledger.CategoryTotal(cat.ID); !total.IsZero() {
		t.Fatalf("category total after reversal = %v", total)
	}
	if total, _ := ledger.CostCenterTotal(cc.ID); !total.IsZero() {
		t.Fatalf("cost center total after reversal = %v", total)
	}

	if _, err := ledger.Reverse(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown entry: expected ErrNotFound, got %v", err)
	}
}

func TestHierarchyTotalsAcrossAccounts(t *testing.T) {
	conn := setupTestDB(t)
	ledger := NewLedgerService(conn)

	ops, _ := ledger.CreateCostCenter("Operations")
	events, _ := ledger.CreateCostCenter("Events")
	general, _ := ledger.CreateCategory("General")
	travel, _ := ledger.CreateCategory("Travel")

	cash, err := ledger.CreateAccount(AccountInput{Code: 1800, Name: "Cash", CategoryID: general.ID, CostCenterID: ops.ID})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	bank, err := ledger.CreateAccount(AccountInput{Code: 1810, Name: "Bank", CategoryID: travel.ID, CostCenterID: ops.ID})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	bar, err := ledger.CreateAccount(AccountInput{Code: 4000, Name: "Bar", CategoryID: general.ID, CostCenterID: events.ID})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	for _, post := range []PostInput{
		{AccountID: cash.ID, Amount: models.AmountFromUnits(100)},
		{AccountID: cash.ID, Amount: models.AmountFromUnits(200)},
		{AccountID: bank.ID, Amount: models.AmountFromUnits(140)},
		{AccountID: bar.ID, Amount: models.AmountFromUnits(-50)},
	} {
		if _, err := ledger.Post(post); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	// Cost center totals equal the sum of their accounts' balances.
	if total, _ := ledger.CostCenterTotal(ops.ID); total != models.AmountFromUnits(440) {
		t.Errorf("Operations total = %v, want 440.00", total)
	}
	if total, _ := ledger.CostCenterTotal(events.ID); total != models.AmountFromUnits(-50) {
		t.Errorf("Events total = %v, want -50.00", total)
	}
	// Category totals cut across cost centers.
	if total, _ := ledger.CategoryTotal(general.ID); total != models.AmountFromUnits(250) {
		t.Errorf("General total = %v, want 250.00", total)
	}
	if total, _ := ledger.CategoryTotal(travel.ID); total != models.AmountFromUnits(140) {
		t.Errorf("Travel total = %v, want 140.00", total)
	}

	rows, err := ledger.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 summary rows, got %d", len(rows))
	}
	if rows[0].AccountName != "Cash" || rows[0].Total != models.AmountFromUnits(300) {
		t.Errorf("first summary row = %+v", rows[0])
	}
	if rows[2].CostCenterName != "Events" || rows[2].Total != models.AmountFromUnits(-50) {
		t.Errorf("last summary row = %+v", rows[2])
	}
}

func TestDeletionGuards(t *testing.T) {
	conn := setupTestDB(t)
	ledger := NewLedgerService(conn)
	cc, cat, cash := seedChart(t, ledger)

	if _, err := ledger.Post(PostInput{AccountID: cash.ID, Amount: models.AmountFromUnits(10)}); err != nil {
		t.Fatalf("post: %v", err)
	}

	// The account has been posted to, so it stays — even after a reversal
	// brings the balance back to zero. The guard is keyed on entries, not on
	// the balance value.
	var entry models.Entry
	if err := conn.Where("account_id = ?", cash.ID).First(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if _, err := ledger.Reverse(entry.ID); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if balance, _ := ledger.Balance(cash.ID); !balance.IsZero() {
		t.Fatalf("balance should be zero, got %v", balance)
	}
	if err := ledger.DeleteAccount(cash.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("delete posted account: expected ErrConflict, got %v", err)
	}

	if err := ledger.DeleteCategory(cat.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("delete referenced category: expected ErrConflict, got %v", err)
	}
	if err := ledger.DeleteCostCenter(cc.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("delete referenced cost center: expected ErrConflict, got %v", err)
	}

	// A never-used account can go, and afterwards so can its groupings.
	spare, err := ledger.CreateAccount(AccountInput{Code: 9999, Name: "Spare", CategoryID: cat.ID, CostCenterID: cc.ID})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := ledger.DeleteAccount(spare.ID); err != nil {
		t.Fatalf("delete unused account: %v", err)
	}
	if err := ledger.DeleteAccount(spare.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: expected ErrNotFound, got %v", err)
	}
}

func TestCachedBalanceMatchesLedgerSum(t *testing.T) {
	conn := setupTestDB(t)
	ledger := NewLedgerService(conn)
	_, _, cash := seedChart(t, ledger)

	amounts := []int64{500, -120, 33, -33, 7}
	var want int64
	for _, a := range amounts {
		if _, err := ledger.Post(PostInput{AccountID: cash.ID, Amount: models.AmountFromUnits(a)}); err != nil {
			t.Fatalf("post %d: %v", a, err)
		}
		want += a * 100
	}

	var sum int64
	if err := conn.Model(&models.Entry{}).Where("account_id = ?", cash.ID).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error; err != nil {
		t.Fatalf("sum: %v", err)
	}
	balance, err := ledger.Balance(cash.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cents() != sum || sum != want {
		t.Fatalf("cache %d, ledger %d, want %d", balance.Cents(), sum, want)
	}
}

func TestPostDetectsTamperedCache(t *testing.T) {
	conn := setupTestDB(t)
	ledger := NewLedgerService(conn)
	_, _, cash := seedChart(t, ledger)

	// A writer bypassing the engine corrupts the cached balance; the next
	// posting must refuse to commit on top of it.
	if err := conn.Model(&models.Account{}).Where("id = ?", cash.ID).
		Update("balance", gorm.Expr("balance + 1")).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, err := ledger.Post(PostInput{AccountID: cash.ID, Amount: models.AmountFromUnits(10)})
	var cerr *ConsistencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
	// The refused posting rolled back: no entry row was committed.
	var count int64
	conn.Model(&models.Entry{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected rollback, found %d entries", count)
	}
}
