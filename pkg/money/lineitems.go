package money

// LineItem is a quantity of a priced unit on an invoice or quote.
type LineItem struct {
	Quantity  int64
	UnitPrice Amount
}

// Total returns quantity * unit price, rounded.
func (item LineItem) Total() Amount {
	return item.UnitPrice.MulFloat(float64(item.Quantity))
}

// Subtotal sums line item totals, rounding after every addition.
func Subtotal(items []LineItem) Amount {
	sum := Zero()
	for _, item := range items {
		sum = sum.Add(item.Total())
	}
	return sum
}

// VAT returns the tax due on an amount at the given rate.
func VAT(amount Amount, rate float64) Amount {
	return amount.MulFloat(rate)
}

// InvoiceTotals holds the derived totals for a set of line items.
type InvoiceTotals struct {
	Subtotal  Amount
	VATAmount Amount
	Total     Amount
}

// CalculateInvoiceTotals derives subtotal, VAT, and grand total for the
// given line items.
func CalculateInvoiceTotals(items []LineItem, vatEnabled bool, vatRate float64) InvoiceTotals {
	subtotal := Subtotal(items)
	vatAmount := Zero()
	if vatEnabled {
		vatAmount = VAT(subtotal, vatRate)
	}
	return InvoiceTotals{
		Subtotal:  subtotal,
		VATAmount: vatAmount,
		Total:     subtotal.Add(vatAmount),
	}
}
