package dto

import "encoding/json"

// Chain event names accepted by the webhook.
const (
	ChainEventTicketMinted   = "TicketMinted"
	ChainEventTicketScanned  = "TicketScanned"
	ChainEventRewardUnlocked = "RewardUnlocked"
)

// WebhookRequest is the relay envelope. Data is decoded once the event name is known.
type WebhookRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TicketMintedData payload.
type TicketMintedData struct {
	TokenID FlexString `json:"tokenId"`
	EventID FlexString `json:"eventId"`
	Holder  string     `json:"holder"`
	QRCode  string     `json:"qrCode"`
}

// TicketScannedData payload.
type TicketScannedData struct {
	TokenID FlexString `json:"tokenId"`
	Scanner string     `json:"scanner"`
}

// RewardUnlockedData payload.
type RewardUnlockedData struct {
	TokenID FlexString `json:"tokenId"`
	Holder  string     `json:"holder"`
}

// WebhookResponse response.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Applied bool   `json:"applied"`
}
