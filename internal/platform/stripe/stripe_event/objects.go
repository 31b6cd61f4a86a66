package stripe_event

import (
	"encoding/json"
	"fmt"
)

// ExpandableID decodes a reference that Stripe sends either as a bare id or
// as an expanded object.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*e = ExpandableID(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("expandable id: %w", err)
	}
	*e = ExpandableID(obj.ID)
	return nil
}

func (e ExpandableID) String() string { return string(e) }

type CheckoutSession struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          ExpandableID      `json:"customer"`
	Subscription      ExpandableID      `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// UserID prefers client_reference_id and falls back to metadata.userId.
func (s *CheckoutSession) UserID() string {
	if s.ClientReferenceID != "" {
		return s.ClientReferenceID
	}
	return s.Metadata["userId"]
}

type Recurring struct {
	Interval string `json:"interval"`
}

type SubscriptionItem struct {
	CurrentPeriodEnd int64 `json:"current_period_end"`
	Price            *struct {
		Recurring *Recurring `json:"recurring"`
	} `json:"price"`
	Plan *Recurring `json:"plan"`
}

type Subscription struct {
	ID               string       `json:"id"`
	Customer         ExpandableID `json:"customer"`
	Status           string       `json:"status"`
	CurrentPeriodEnd int64        `json:"current_period_end"`
	Items            struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// PeriodEnd returns the period end in seconds. Newer API versions only carry
// it on the subscription items.
func (s *Subscription) PeriodEnd() int64 {
	if s.CurrentPeriodEnd > 0 {
		return s.CurrentPeriodEnd
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodEnd
	}
	return 0
}

func (s *Subscription) Interval() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	item := s.Items.Data[0]
	if item.Price != nil && item.Price.Recurring != nil {
		return item.Price.Recurring.Interval
	}
	if item.Plan != nil {
		return item.Plan.Interval
	}
	return ""
}

type Invoice struct {
	ID           string       `json:"id"`
	Customer     ExpandableID `json:"customer"`
	Subscription ExpandableID `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription ExpandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID reads the legacy top-level field, then the invoice parent.
func (i *Invoice) SubscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription.String()
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Subscription.String()
	}
	return ""
}

// Decode unmarshals the raw data.object of an event into out.
func Decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty data.object", ErrMalformedEnvelope)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return nil
}
