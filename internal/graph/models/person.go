package models

import (
	"strings"
	"time"

	id "ripple/pkg/domain"
	"ripple/pkg/phone"
)

// Phone is a labelled phone number kept both raw and normalized. Matching always
// uses E164; Raw preserves what the user typed.
type Phone struct {
	Label string `json:"label"`
	Raw   string `json:"raw"`
	E164  string `json:"e164"`
}

// Email is a labelled email address, stored lowercase.
type Email struct {
	Label   string `json:"label"`
	Address string `json:"address"`
}

// Person is a canonical identity node, distinct from any one user's view of it.
// At most one Person should exist per phone/email, but lookup is best-effort;
// duplicates are resolved out-of-band by the duplicate resolver.
//
// Fields are additive: phones and emails are appended, never removed
// automatically. A Person is deleted only via administrative merge.
type Person struct {
	ID               id.PersonID       `json:"id"`
	Phones           []Phone           `json:"phones"`
	Emails           []Email           `json:"emails"`
	Addresses        []string          `json:"addresses"`
	Handles          map[string]string `json:"handles,omitempty"`
	RegisteredUserID *id.UserID        `json:"registeredUserId,omitempty"`
	Company          string            `json:"company,omitempty"`
	JobTitle         string            `json:"jobTitle,omitempty"`
	Birthday         string            `json:"birthday,omitempty"`
	Tags             []string          `json:"tags,omitempty"`

	// TrustScore is a derived value, recomputed in the background after
	// interaction writes. TrustScoreAt stamps the computation; consumers must
	// tolerate staleness.
	TrustScore   float64   `json:"trustScore"`
	TrustScoreAt time.Time `json:"trustScoreAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsRegistered reports whether this identity is claimed by an authenticated
// account. Registered persons control their own data; edits to unregistered
// persons go through the update-event approval workflow.
func (p *Person) IsRegistered() bool {
	return p.RegisteredUserID != nil && !p.RegisteredUserID.IsNil()
}

// HasPhone reports whether the person already carries the number, comparing
// against both the normalized and the raw form.
func (p *Person) HasPhone(number string) bool {
	norm := phone.Digits(number)
	for _, ph := range p.Phones {
		if ph.E164 == number || ph.Raw == number {
			return true
		}
		if norm != "" && phone.Digits(ph.E164) == norm {
			return true
		}
	}
	return false
}

// HasEmail reports whether the person already carries the address
// (case-insensitive).
func (p *Person) HasEmail(address string) bool {
	address = strings.ToLower(strings.TrimSpace(address))
	for _, em := range p.Emails {
		if em.Address == address {
			return true
		}
	}
	return false
}

// AddPhone appends a phone if absent. Returns true when the person changed.
func (p *Person) AddPhone(label, raw, countryCode string) bool {
	e164 := phone.NormalizeE164(raw, countryCode)
	if e164 == "" || p.HasPhone(e164) || p.HasPhone(raw) {
		return false
	}
	p.Phones = append(p.Phones, Phone{Label: label, Raw: raw, E164: e164})
	return true
}

// AddEmail appends a lowercased email if absent. Returns true when the person
// changed.
func (p *Person) AddEmail(label, address string) bool {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" || p.HasEmail(address) {
		return false
	}
	p.Emails = append(p.Emails, Email{Label: label, Address: address})
	return true
}

// PrimaryPhone returns the first phone's E164 form, or "".
func (p *Person) PrimaryPhone() string {
	if len(p.Phones) == 0 {
		return ""
	}
	return p.Phones[0].E164
}

// PrimaryEmail returns the first email address, or "".
func (p *Person) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0].Address
}

// DisplayName is the alias-independent fallback name: first email, then first
// phone, then "Unknown".
func (p *Person) DisplayName() string {
	if e := p.PrimaryEmail(); e != "" {
		return e
	}
	if ph := p.PrimaryPhone(); ph != "" {
		return ph
	}
	return "Unknown"
}
