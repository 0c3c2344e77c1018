package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/models"
)

// Canonical voucher-line column names
const (
	ColVoucherID          = "voucher_id"
	ColDocumentNumber     = "document_number"
	ColDate               = "date"
	ColSupplierID         = "supplier_id"
	ColSupplierName       = "supplier_name"
	ColVoucherDescription = "voucher_description"
	ColDescription        = "description"
	ColVATCode            = "vat_code"
	ColDebit              = "debit"
	ColCredit             = "credit"
)

// VoucherColumns lists the columns a voucher-line table is expected to carry
var VoucherColumns = []string{
	ColVoucherID, ColDocumentNumber, ColDate, ColSupplierID, ColSupplierName,
	ColVoucherDescription, ColAccount, ColAccountName, ColDescription,
	ColVATCode, ColDebit, ColCredit,
}

// BuildVouchers groups voucher-line rows into CostVouchers. Rows sharing a
// voucher_id form one voucher, falling back to document_number when the id
// is blank. Vouchers keep first-seen order and the voucher amount is the
// sum of its line debits.
func (b *Builder) BuildVouchers(table Table) []models.CostVoucher {
	if table == nil {
		return nil
	}

	parse := b.parser()
	text := func(row int, column string) string {
		v, _ := table.Value(row, column)
		return strings.TrimSpace(v)
	}

	var order []string
	byKey := make(map[string]*models.CostVoucher)

	for row := 0; row < table.Len(); row++ {
		key := text(row, ColVoucherID)
		if key == "" {
			key = text(row, ColDocumentNumber)
		}
		if key == "" {
			key = fmt.Sprintf("row-%d", row+1)
		}

		voucher, exists := byKey[key]
		if !exists {
			voucher = &models.CostVoucher{
				ID:             text(row, ColVoucherID),
				DocumentNumber: text(row, ColDocumentNumber),
				Date:           models.ParseDate(text(row, ColDate)),
				SupplierID:     text(row, ColSupplierID),
				SupplierName:   text(row, ColSupplierName),
				Description:    text(row, ColVoucherDescription),
				Amount:         decimal.Zero,
			}
			byKey[key] = voucher
			order = append(order, key)
		}
		fillBlank(&voucher.SupplierName, text(row, ColSupplierName))
		fillBlank(&voucher.SupplierID, text(row, ColSupplierID))
		fillBlank(&voucher.Description, text(row, ColVoucherDescription))
		if voucher.Date == nil {
			voucher.Date = models.ParseDate(text(row, ColDate))
		}

		rawDebit, _ := table.Value(row, ColDebit)
		rawCredit, _ := table.Value(row, ColCredit)
		line := models.VoucherLine{
			Account:     text(row, ColAccount),
			AccountName: text(row, ColAccountName),
			Description: text(row, ColDescription),
			VATCode:     text(row, ColVATCode),
			Debit:       parse(rawDebit),
			Credit:      parse(rawCredit),
		}
		voucher.Lines = append(voucher.Lines, line)
		voucher.Amount = voucher.Amount.Add(line.Debit)
	}

	vouchers := make([]models.CostVoucher, 0, len(order))
	lines := 0
	for _, key := range order {
		vouchers = append(vouchers, *byKey[key])
		lines += len(byKey[key].Lines)
	}

	b.logger.WithField("vouchers", len(vouchers)).WithField("lines", lines).Debug("Built vouchers")
	return vouchers
}

func fillBlank(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}
