package constants

// Payment route patterns
const (
	// GlobalWebhookRoute receives every Recurrente delivery when one
	// webhook is configured account-wide; the target event comes from the
	// checkout metadata.
	GlobalWebhookRoute = "/plugins/recurrente/webhook"
	EventWebhookRoute  = "/:organizer/:event/recurrente/webhook"
	PayRoute           = "/:organizer/:event/recurrente/pay/:code/:secret"
	OrderStatusRoute   = "/:organizer/:event/order/:code/:secret/status"
	RefreshRoute       = "/:organizer/:event/order/:code/:secret/refresh/:payment"
)
