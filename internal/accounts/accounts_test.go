package accounts

import (
	"errors"
	"sync"
	"testing"

	"github.com/ksred/klear-trading/internal/database/dbtest"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOpenAccount(t *testing.T) {
	svc := NewService(dbtest.Open(t))

	account, err := svc.OpenAccount(5, OpenAccountRequest{AccountName: "Main", BrokerName: "SSI", InitialDeposit: 10_000_000})
	require.NoError(t, err)
	assert.Equal(t, uint(5), account.UserID)
	assert.Equal(t, types.AccountActive, account.Status)
	assert.Equal(t, 10_000_000.0, account.Balance)
	assert.Equal(t, 10_000_000.0, account.AvailableCash)
	assert.Regexp(t, `^ACCT-\d+$`, account.AccountNumber)

	second, err := svc.OpenAccount(5, OpenAccountRequest{AccountName: "Second"})
	require.NoError(t, err)
	assert.NotEqual(t, account.AccountNumber, second.AccountNumber)

	list, err := svc.GetAccountsByUser(5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestOpenAccountValidation(t *testing.T) {
	svc := NewService(dbtest.Open(t))

	_, err := svc.OpenAccount(1, OpenAccountRequest{AccountName: "ab"})
	assert.Equal(t, types.KindBadRequest, types.KindOf(err))

	_, err = svc.OpenAccount(1, OpenAccountRequest{AccountName: "Main", InitialDeposit: -1})
	assert.Equal(t, types.KindBadRequest, types.KindOf(err))
}

func TestUpdateAccount(t *testing.T) {
	svc := NewService(dbtest.Open(t))
	account, err := svc.OpenAccount(1, OpenAccountRequest{AccountName: "Main", InitialDeposit: 100})
	require.NoError(t, err)

	locked := types.AccountLocked
	name := "Renamed"
	updated, err := svc.UpdateAccount(account.ID, UpdateAccountRequest{AccountName: &name, Status: &locked})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.AccountName)
	assert.Equal(t, types.AccountLocked, updated.Status)
	assert.Equal(t, 100.0, updated.Balance)

	bogus := types.AccountStatus("FROZEN")
	_, err = svc.UpdateAccount(account.ID, UpdateAccountRequest{Status: &bogus})
	assert.Equal(t, types.KindBadRequest, types.KindOf(err))

	_, err = svc.UpdateAccount(999, UpdateAccountRequest{Status: &locked})
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}

func TestDeleteAccount(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(db)

	empty := dbtest.Account(t, db, 0)
	require.NoError(t, svc.DeleteAccount(empty.ID))
	_, err := svc.GetAccount(empty.ID)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))

	assert.Equal(t, types.KindNotFound, types.KindOf(svc.DeleteAccount(empty.ID)))

	held := dbtest.Account(t, db, 0)
	require.NoError(t, db.Create(&types.Position{AccountID: held.ID, Symbol: "VIC", Quantity: 10, AveragePrice: 1}).Error)
	assert.Equal(t, types.KindConflict, types.KindOf(svc.DeleteAccount(held.ID)))
}

func TestAdjust(t *testing.T) {
	db := dbtest.Open(t)
	account := dbtest.Account(t, db, 1000)

	updated, err := Adjust(db, account.ID, -400.5, 400)
	require.NoError(t, err)
	assert.Equal(t, 599.5, updated.Balance)
	assert.Equal(t, 599.5, updated.AvailableCash)
	assert.Equal(t, account.Version+1, updated.Version)

	_, err = Adjust(db, account.ID, -700, 700)
	assert.ErrorIs(t, err, types.ErrInsufficientFunds)

	updated, err = Adjust(db, account.ID, 0.5, 0)
	require.NoError(t, err)
	assert.Equal(t, 600.0, updated.AvailableCash)
}

func TestAdjustSerializesConcurrentDebits(t *testing.T) {
	db := dbtest.Open(t)
	account := dbtest.Account(t, db, 1000)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.Transaction(func(tx *gorm.DB) error {
				_, err := Adjust(tx, account.ID, -300, 300)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, types.ErrInsufficientFunds):
			insufficient++
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 2, insufficient)

	final, err := Find(db, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, final.AvailableCash)
}
