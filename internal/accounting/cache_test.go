package accounting_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestCachedBalancesFollowWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := lt.New(t)
	f.Service.WithCache(cache.NewBalances(client, time.Minute))
	f.Service.WithLocker(cache.NewLocker(client, time.Second, time.Millisecond))

	bank := f.Account(accounting.AccountTypeBank)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	f.Opening(bank, accounting.EntryDebit, "100")
	assertDecimal(t, "100", f.Closing(bank))
	assertDecimal(t, "100", f.Closing(bank))
	assert.NotEmpty(t, mr.Keys())

	f.Simple(accounting.TransactionTypeCashSale, bank, lt.Line(revenue.ID, "25"))
	assertDecimal(t, "125", f.Closing(bank))

	opening, err := f.Service.OpeningBalance(f.Ctx, f.Scope, bank.ID, nil, nil)
	require.NoError(t, err)
	assertDecimal(t, "100", opening[f.Entity.CurrencyID])
	assert.False(t, mr.Exists(shared.EntityLockKey(f.Entity.ID)))
}

func TestCachedDefaultsFollowFiscalYear(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := lt.New(t)
	f.Service.WithCache(cache.NewBalances(client, time.Minute))
	bank := f.Account(accounting.AccountTypeBank)
	f.Opening(bank, accounting.EntryDebit, "100")

	opening, err := f.Service.OpeningBalance(f.Ctx, f.Scope, bank.ID, nil, nil)
	require.NoError(t, err)
	assertDecimal(t, "100", opening[f.Entity.CurrencyID])
	assertDecimal(t, "100", f.Closing(bank))

	f.Service.WithNow(func() time.Time { return time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC) })
	opening, err = f.Service.OpeningBalance(f.Ctx, f.Scope, bank.ID, nil, nil)
	require.NoError(t, err)
	assertDecimal(t, "0", opening[f.Entity.CurrencyID])
	assertDecimal(t, "0", f.Closing(bank))
}
