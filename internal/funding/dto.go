package funding

// WebhookRequest is the payment provider's callback payload.
type WebhookRequest struct {
	Provider  string `json:"provider"`
	Reference string `json:"reference"`
	OwnerID   string `json:"owner_id"`
	Amount    string `json:"amount"`
}

// WebhookResponse reports the ledger outcome back to the provider.
type WebhookResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Balance       int64  `json:"balance"`
}
