package domain

import "time"

// CrmRecord is a contact as stored by the CRM collaborator, including the
// first-touch attribution fields the CRM keeps on the contact itself and
// the most valuable associated deal, if any.
type CrmRecord struct {
	ContactID string
	Email     string
	Phone     string
	FirstName string
	LastName  string

	FirstTouchSource string
	Attribution      AttributionFragment

	DealID       string
	DealValue    float64
	DealClosedAt *time.Time

	UpdatedAt time.Time
}
