package domain

import "time"

// Customer is the authenticated identity as returned by the backend.
type Customer struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Addresses []CustomerAddress `json:"addresses,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// FindAddress looks up a saved address by id.
func (c Customer) FindAddress(id string) (CustomerAddress, bool) {
	for _, a := range c.Addresses {
		if a.ID == id {
			return a, true
		}
	}
	return CustomerAddress{}, false
}

// ProfileUpdate carries the editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}
