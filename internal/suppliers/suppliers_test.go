package suppliers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saft-reconciliation-service/internal/models"
	"saft-reconciliation-service/pkg/logger"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func line(account, debit, credit string) models.VoucherLine {
	return models.VoucherLine{Account: account, Debit: d(debit), Credit: d(credit)}
}

func TestIsCostAccount(t *testing.T) {
	tests := []struct {
		account string
		want    bool
	}{
		{"4000", true},
		{" 6540 ", true},
		{"8150", true},
		{"K-7000", true},
		{"3000", false},
		{"2400", false},
		{"9000", false},
		{"", false},
		{"Konto", false},
	}

	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCostAccount(tt.account))
		})
	}
}

func TestPurchasesPerSupplier(t *testing.T) {
	a := NewAnalyzer(logger.NewNop())

	vouchers := []models.CostVoucher{
		{ID: "1", SupplierID: "S1", SupplierName: "Kontorland", Lines: []models.VoucherLine{
			line("6540", "1000", "0"), line("2710", "250", "0"), line("2400", "0", "1250"),
		}},
		{ID: "2", SupplierID: "S1", Lines: []models.VoucherLine{
			line("6540", "2000.555", "0"), line("6540", "0", "500"),
		}},
		{ID: "3", SupplierID: "S2", SupplierName: "Møbelhuset", Lines: []models.VoucherLine{
			line("4000", "40000", "0"), line("2400", "0", "40000"),
		}},
		{ID: "4", SupplierName: "Kun navn", Lines: []models.VoucherLine{line("7000", "300", "0")}},
		{ID: "5", SupplierID: "S3", Lines: []models.VoucherLine{line("1200", "50000", "0")}},
		{ID: "6", Lines: []models.VoucherLine{line("6540", "99999", "0")}},
	}

	got := a.PurchasesPerSupplier(vouchers)
	require.Len(t, got, 3)

	assert.Equal(t, "S2", got[0].SupplierID)
	assert.Equal(t, "Møbelhuset", got[0].SupplierName)
	assert.True(t, got[0].Amount.Equal(d("40000")))
	assert.Equal(t, 1, got[0].Transactions)

	assert.Equal(t, "S1", got[1].SupplierID)
	assert.Equal(t, "Kontorland", got[1].SupplierName, "first non-blank name wins")
	assert.True(t, got[1].Amount.Equal(d("2500.56")), "net of credits, rounded to cents: %s", got[1].Amount)
	assert.Equal(t, 2, got[1].Transactions)

	assert.Equal(t, "Kun navn", got[2].SupplierID, "name stands in for a missing id")
	assert.True(t, got[2].Amount.Equal(d("300")))

	assert.Empty(t, a.PurchasesPerSupplier(nil))
}

func TestPurchasesPerSupplier_TiesSortBySupplier(t *testing.T) {
	a := NewAnalyzer(logger.NewNop())

	got := a.PurchasesPerSupplier([]models.CostVoucher{
		{ID: "1", SupplierID: "B", Lines: []models.VoucherLine{line("5000", "100", "0")}},
		{ID: "2", SupplierID: "A", Lines: []models.VoucherLine{line("8100", "100", "0")}},
		{ID: "3", SupplierID: "C", Lines: []models.VoucherLine{line("4300", "0", "100")}},
	})

	require.Len(t, got, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{got[0].SupplierID, got[1].SupplierID, got[2].SupplierID})
	assert.True(t, got[2].Amount.Equal(d("-100")), "credit notes can leave a negative total")
}
