package reconciler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"saft-reconciliation-service/internal/ledger"
	"saft-reconciliation-service/pkg/logger"
)

// trialBalanceRows is a balanced trial balance with revenue 500, assets
// 1000, equity 400 and liabilities 600
func trialBalanceRows() [][]string {
	return [][]string{
		{"1200", "Maskiner", "300", "0", "0", "0"},
		{"1920", "Bank", "0", "0", "1000", "0"},
		{"2000", "Aksjekapital", "0", "100", "0", "400"},
		{"2400", "Leverandørgjeld", "0", "200", "0", "600"},
		{"3000", "Salgsinntekt", "0", "0", "0", "500"},
		{"4000", "Varekjøp", "0", "0", "500", "0"},
		{"", "", "0", "0", "0", "0"},
	}
}

func trialBalanceTable(rows [][]string) *ledger.RecordTable {
	return ledger.NewRecordTable(
		[]string{"account", "account_name", "opening_debit", "opening_credit", "closing_debit", "closing_credit"},
		rows,
	)
}

func balancedTrialBalance() *ledger.RecordTable {
	return trialBalanceTable(trialBalanceRows())
}

func voucherTable() *ledger.RecordTable {
	return ledger.NewRecordTable(
		[]string{"voucher_id", "document_number", "date", "supplier_name", "account", "account_name", "vat_code", "debit", "credit"},
		[][]string{
			{"1", "F-1", "2024-01-10", "Kontorland", "6540", "Inventar", "1", "1000", "0"},
			{"2", "F-2", "2024-02-10", "Kontorland", "6540", "Inventar", "1", "2000", "0"},
			{"3", "F-3", "2024-03-10", "Kontorland", "6540", "Inventar", "1", "3000", "0"},
			{"4", "F-4", "2024-04-10", "Møbelhuset", "6540", "Inventar", "13", "40000", "0"},
			{"5", "F-5", "2024-05-10", "Maskinsalg", "1200", "Maskiner", "1", "50000", "0"},
			{"", "", "", "", "", "", "", "", ""},
		},
	)
}

const registryAccounts = `{
	"resultatregnskap": {"sumDriftsinntekter": 501, "driftsresultat": 0, "arsresultat": 0},
	"balanse": {"sumEiendeler": 1000, "sumEgenkapital": 400, "sumGjeld": 610}
}`

func newTestSession(t *testing.T, config *Config, lookup RegistryLookup) *Session {
	t.Helper()
	session, err := NewSession(config, lookup, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}
