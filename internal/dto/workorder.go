package dto

// SendInstallmentRequest issues a partial fulfillment against one requisition.
// The idempotency key lets a retried request replay the original outcome
// instead of decrementing stock a second time.
type SendInstallmentRequest struct {
	Quantity       int    `json:"quantity" validate:"required,gt=0"`
	IdempotencyKey string `json:"idempotency_key"`
}

// WorkOrderQuery selects the operator buffer applied on top of the shortfall.
type WorkOrderQuery struct {
	AdditionalPercent int `form:"additional_percent"`
}
