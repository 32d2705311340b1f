package billing

const (
	operationRecordPayment  = "record_payment"
	operationApplyCredit    = "apply_credit"
	operationDeletePayment  = "delete_payment"
	operationPaymentSummary = "payment_summary"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	creditAppliedDescription    = "Applied customer credit balance"
	overpaymentDescriptionForms = "Overpayment from invoice %s"
)
