package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/nftix/ticket-lifecycle/internal/domain"
)

// FlexString accepts a JSON string or number. Chain relays send token and
// event ids as numbers; browsers usually send strings. Numbers must be
// non-negative integers and are stored in canonical decimal form, so 1000,
// 1000.0 and 1e3 name the same id.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	id, ok := new(big.Rat).SetString(n.String())
	if !ok || !id.IsInt() || id.Sign() < 0 {
		return fmt.Errorf("id %s is not a non-negative integer", n)
	}
	*f = FlexString(id.Num().String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// ValidateTicketRequest payload.
type ValidateTicketRequest struct {
	TokenID        FlexString `json:"tokenId"`
	QRCode         string     `json:"qrCode"`
	ScannerAddress string     `json:"scannerAddress"`
}

// TicketInfo is the ticket summary returned after a scan.
type TicketInfo struct {
	TokenID string             `json:"tokenId"`
	EventID string             `json:"eventId"`
	Holder  string             `json:"holder"`
	State   domain.TicketState `json:"state"`
}

// ValidateTicketResponse response.
type ValidateTicketResponse struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	TicketInfo TicketInfo `json:"ticketInfo"`
}

// TicketResponse is the full public view of a ticket. The QR secret hash is
// never exposed.
type TicketResponse struct {
	TokenID    string             `json:"tokenId"`
	EventID    string             `json:"eventId"`
	Holder     string             `json:"holder"`
	State      domain.TicketState `json:"state"`
	MintedAt   time.Time          `json:"mintedAt"`
	AttendedAt *time.Time         `json:"attendedAt"`
	RewardedAt *time.Time         `json:"rewardedAt"`
}

// UserTicketsResponse response.
type UserTicketsResponse struct {
	Tickets []TicketResponse `json:"tickets"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		TokenID:    t.ID,
		EventID:    t.EventID,
		Holder:     t.Holder,
		State:      t.State,
		MintedAt:   t.MintedAt,
		AttendedAt: t.AttendedAt,
		RewardedAt: t.RewardedAt,
	}
}
