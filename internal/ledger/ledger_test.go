package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saft-reconciliation-service/pkg/logger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRecordTable(t *testing.T) {
	table := NewRecordTable(
		[]string{" account ", "account_name", "account"},
		[][]string{{"3000", "Salg", "ignored"}, {"4000"}},
	)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"account", "account_name", "account"}, table.Columns())

	v, ok := table.Value(0, "account")
	assert.True(t, ok)
	assert.Equal(t, "3000", v)

	v, ok = table.Value(1, "account_name")
	assert.True(t, ok, "column exists even when the record is short")
	assert.Equal(t, "", v)

	_, ok = table.Value(0, "closing_debit")
	assert.False(t, ok)
}

func TestMapTable(t *testing.T) {
	table := NewMapTable([]map[string]interface{}{
		{"account": "1920", "closing_debit": 1500.5},
		{"account": 2050, "closing_credit": dec("1500.50")},
	})

	assert.Equal(t, []string{"account", "closing_debit", "closing_credit"}, table.Columns())

	v, _ := table.Value(0, "closing_debit")
	assert.Equal(t, "1500.5", v)
	v, _ = table.Value(1, "account")
	assert.Equal(t, "2050", v)
	v, ok := table.Value(1, "closing_debit")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(logger.NewNop())

	t.Run("debit credit pairs", func(t *testing.T) {
		table := NewRecordTable(
			[]string{"account", "account_name", "opening_debit", "opening_credit", "closing_debit", "closing_credit"},
			[][]string{
				{"1200", "Maskiner", "50 000,00", "0", "0", "0"},
				{"3000", "Salg", "0", "0", "0", "1000"},
				{"SUM", "Total", "x", "", "", ""},
			},
		)

		tb := b.Build(table)
		require.Equal(t, 3, tb.Len())

		machinery := tb.Accounts[0]
		assert.True(t, machinery.OpeningNet().Equal(dec("50000")))
		assert.True(t, machinery.Change().Equal(dec("-50000")))

		assert.Nil(t, tb.Accounts[2].Number)
		assert.True(t, tb.Accounts[2].OpeningNet().IsZero(), "non-numeric amounts become zero")
	})

	t.Run("missing columns are default-filled", func(t *testing.T) {
		table := NewMapTable([]map[string]interface{}{
			{"account": "4000", "closing_debit": "600"},
		})

		tb := b.Build(table)
		require.Equal(t, 1, tb.Len())
		acct := tb.Accounts[0]
		assert.Equal(t, "", acct.Name)
		assert.True(t, acct.OpeningNet().IsZero())
		assert.True(t, acct.ClosingNet().Equal(dec("600")))
	})

	t.Run("precomputed nets win", func(t *testing.T) {
		table := NewMapTable([]map[string]interface{}{
			{"account": "1500", "opening_debit": "10", "closing_debit": "999", "opening_net": "", "closing_net": "250", "previous": "75"},
		})

		acct := b.Build(table).Accounts[0]
		assert.True(t, acct.OpeningNet().IsZero(), "blank precomputed net is zero, not debit minus credit")
		assert.True(t, acct.ClosingNet().Equal(dec("250")))
		assert.True(t, acct.Change().Equal(dec("250")))
		assert.True(t, acct.PreviousNet().Equal(dec("75")))
	})

	t.Run("injected amount parser", func(t *testing.T) {
		custom := NewBuilder(logger.NewNop())
		custom.ParseAmount = func(string) decimal.Decimal { return decimal.NewFromInt(1) }

		tb := custom.Build(NewMapTable([]map[string]interface{}{{"account": "1", "closing_debit": "whatever"}}))
		assert.True(t, tb.Accounts[0].ClosingNet().Equal(dec("1")))
	})

	t.Run("nil table", func(t *testing.T) {
		assert.Equal(t, 0, b.Build(nil).Len())
	})
}

func TestBuilder_BuildVouchers(t *testing.T) {
	b := NewBuilder(logger.NewNop())
	table := NewRecordTable(VoucherColumns, [][]string{
		{"V1", "F-100", "2024-02-01", "S1", "Kontorrekvisita AS", "Innkjøp", "6540", "Inventar", "Stol", "1", "1000", "0"},
		{"V1", "F-100", "2024-02-01", "S1", "", "", "2710", "Inngående mva", "", "1", "250", "0"},
		{"V1", "F-100", "2024-02-01", "S1", "", "", "2400", "Leverandørgjeld", "", "", "0", "1250"},
		{"", "F-200", "", "", "Rørlegger", "", "6600", "Reparasjon", "", "", "500", "0"},
	})

	vouchers := b.BuildVouchers(table)
	require.Len(t, vouchers, 2)

	first := vouchers[0]
	assert.Equal(t, "V1", first.ID)
	assert.Equal(t, "Kontorrekvisita AS", first.SupplierName)
	require.NotNil(t, first.Date)
	assert.Len(t, first.Lines, 3)
	assert.True(t, first.Amount.Equal(dec("1250")), "voucher amount is the sum of debits")

	second := vouchers[1]
	assert.Equal(t, "F-200", second.Reference())
	assert.Nil(t, second.Date)
	assert.True(t, second.Amount.Equal(dec("500")))
}
