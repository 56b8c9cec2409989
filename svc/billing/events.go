package billing

import (
	"bytes"
	"encoding/json"

	"github.com/dmitrymomot/artshare/svc/entitlement"
)

// expandableID decodes a Stripe reference that is either an id string or an
// expanded object with an "id" field.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

// checkoutSession is a minimal checkout.session payload.
type checkoutSession struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          expandableID      `json:"customer"`
	Subscription      expandableID      `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func (s checkoutSession) userRef() string {
	if ref := s.Metadata[entitlement.UserRefMetadataKey]; ref != "" {
		return ref
	}
	return s.ClientReferenceID
}

// subscriptionPayload is a minimal customer.subscription payload.
type subscriptionPayload struct {
	ID                string            `json:"id"`
	Customer          expandableID      `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`
}

func (s subscriptionPayload) toSubscription() entitlement.Subscription {
	return entitlement.Subscription{
		ID:                s.ID,
		CustomerID:        string(s.Customer),
		Status:            entitlement.Status(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Metadata:          s.Metadata,
	}
}

// invoicePayload is a minimal invoice payload. Newer API versions move the
// subscription under parent.subscription_details; both places are read.
type invoicePayload struct {
	ID           string       `json:"id"`
	Customer     expandableID `json:"customer"`
	Subscription expandableID `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription expandableID      `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

func (p invoicePayload) toInvoice() entitlement.Invoice {
	inv := entitlement.Invoice{
		ID:             p.ID,
		CustomerID:     string(p.Customer),
		SubscriptionID: string(p.Subscription),
		UserRef:        p.Parent.SubscriptionDetails.Metadata[entitlement.UserRefMetadataKey],
	}
	if inv.SubscriptionID == "" {
		inv.SubscriptionID = string(p.Parent.SubscriptionDetails.Subscription)
	}
	for _, line := range p.Lines.Data {
		inv.Lines = append(inv.Lines, entitlement.InvoiceLine{
			PeriodStart: unixTime(line.Period.Start),
			PeriodEnd:   unixTime(line.Period.End),
		})
	}
	return inv
}
