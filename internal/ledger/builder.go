package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/models"
	"saft-reconciliation-service/pkg/logger"
)

// Canonical trial-balance column names
const (
	ColAccount       = "account"
	ColAccountName   = "account_name"
	ColOpeningDebit  = "opening_debit"
	ColOpeningCredit = "opening_credit"
	ColClosingDebit  = "closing_debit"
	ColClosingCredit = "closing_credit"
	ColOpeningNet    = "opening_net"
	ColClosingNet    = "closing_net"
	ColPrevious      = "previous"
)

// TrialBalanceColumns lists the columns a trial balance is expected to carry.
// Missing ones are default-filled.
var TrialBalanceColumns = []string{
	ColAccount, ColAccountName,
	ColOpeningDebit, ColOpeningCredit,
	ColClosingDebit, ColClosingCredit,
}

// AmountParser converts cell text to an amount. It must never fail; input
// it cannot read becomes zero.
type AmountParser func(string) decimal.Decimal

// Builder normalizes raw ledger tables into canonical trial balances
type Builder struct {
	ParseAmount AmountParser
	logger      logger.Logger
}

// NewBuilder creates a Builder using models.ParseAmount
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Builder{
		ParseAmount: models.ParseAmount,
		logger:      log.WithComponent("ledger"),
	}
}

func (b *Builder) parser() AmountParser {
	if b.ParseAmount != nil {
		return b.ParseAmount
	}
	return models.ParseAmount
}

// Build converts table into a TrialBalance. Missing text columns become "",
// missing amount columns become zero, and precomputed opening_net or
// closing_net columns replace the corresponding debit/credit difference.
func (b *Builder) Build(table Table) *models.TrialBalance {
	if table == nil {
		return models.NewTrialBalance(nil)
	}

	var missing []string
	for _, col := range TrialBalanceColumns {
		if !HasColumn(table, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		b.logger.WithField("columns", strings.Join(missing, ",")).Debug("Default-filling missing trial balance columns")
	}

	parse := b.parser()
	amount := func(row int, column string) decimal.Decimal {
		text, _ := table.Value(row, column)
		return parse(text)
	}
	override := func(row int, column string) decimal.NullDecimal {
		text, ok := table.Value(row, column)
		if !ok {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(parse(text))
	}

	accounts := make([]models.LedgerAccount, 0, table.Len())
	unparsable := 0
	for row := 0; row < table.Len(); row++ {
		code, _ := table.Value(row, ColAccount)
		name, _ := table.Value(row, ColAccountName)

		acct := models.NewLedgerAccount(
			strings.TrimSpace(code),
			strings.TrimSpace(name),
			amount(row, ColOpeningDebit),
			amount(row, ColOpeningCredit),
			amount(row, ColClosingDebit),
			amount(row, ColClosingCredit),
		)
		acct.OpeningOverride = override(row, ColOpeningNet)
		acct.ClosingOverride = override(row, ColClosingNet)
		acct.Previous = override(row, ColPrevious)

		if acct.Number == nil {
			unparsable++
		}
		accounts = append(accounts, *acct)
	}

	b.logger.WithFields(logger.Fields{
		"accounts":   len(accounts),
		"unparsable": unparsable,
	}).Debug("Built trial balance")

	return models.NewTrialBalance(accounts)
}
