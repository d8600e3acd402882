package model

import "time"

// Shelter is the authoritative record for one emergency shelter.  It is
// the only entity the service manages.  Values of this type are treated
// as immutable snapshots once they leave the store: a commit produces a
// new value rather than mutating a published one.
//
// Fields:
//
//	ID                stable, globally unique identifier; never changes.
//	Name              display name; snapshots are ordered by it.
//	Address           street address shown to the public.
//	Latitude          decimal degrees, [-90, 90].
//	Longitude         decimal degrees, [-180, 180].
//	TotalBeds         bed capacity, >= 0.
//	AvailableBeds     free beds, 0 <= AvailableBeds <= TotalBeds.
//	AllowsPets        policy flag.
//	RequiresSobriety  policy flag.
//	AcceptsFamilies   policy flag.
//	ContactPhone      public phone number.
//	ContactEmail      public email address.
//	LastUpdated       commit time of the latest change; non-decreasing.
//	UpdatedBy         principal that made the latest change.
//	CreatedAt         creation time.
//	Revision          0 on creation, +1 per committed mutation.
type Shelter struct {
	ID               string    `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	Address          string    `json:"address" yaml:"address"`
	Latitude         float64   `json:"latitude" yaml:"latitude"`
	Longitude        float64   `json:"longitude" yaml:"longitude"`
	TotalBeds        int       `json:"total_beds" yaml:"total_beds"`
	AvailableBeds    int       `json:"available_beds" yaml:"available_beds"`
	AllowsPets       bool      `json:"allows_pets" yaml:"allows_pets"`
	RequiresSobriety bool      `json:"requires_sobriety" yaml:"requires_sobriety"`
	AcceptsFamilies  bool      `json:"accepts_families" yaml:"accepts_families"`
	ContactPhone     string    `json:"contact_phone" yaml:"contact_phone"`
	ContactEmail     string    `json:"contact_email" yaml:"contact_email"`
	LastUpdated      time.Time `json:"last_updated" yaml:"last_updated"`
	UpdatedBy        string    `json:"updated_by" yaml:"updated_by"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	Revision         int64     `json:"revision" yaml:"revision"`
}

// Status derives the public availability status of the shelter.
func (s Shelter) Status() Status { return Availability(s.AvailableBeds, s.TotalBeds) }

// ShelterUpdate is a partial mutation.  Nil fields are left untouched.
// Only bed availability and the three policy flags are mutable; every
// other field is fixed at creation.
type ShelterUpdate struct {
	AvailableBeds    *int  `json:"available_beds,omitempty"`
	AllowsPets       *bool `json:"allows_pets,omitempty"`
	RequiresSobriety *bool `json:"requires_sobriety,omitempty"`
	AcceptsFamilies  *bool `json:"accepts_families,omitempty"`
}

// Empty reports whether the update touches no field.
func (u ShelterUpdate) Empty() bool {
	return u.AvailableBeds == nil && u.AllowsPets == nil && u.RequiresSobriety == nil && u.AcceptsFamilies == nil
}

// Apply returns a copy of s with the update's non-nil fields applied.
// It performs no validation.
func (u ShelterUpdate) Apply(s Shelter) Shelter {
	if u.AvailableBeds != nil {
		s.AvailableBeds = *u.AvailableBeds
	}
	if u.AllowsPets != nil {
		s.AllowsPets = *u.AllowsPets
	}
	if u.RequiresSobriety != nil {
		s.RequiresSobriety = *u.RequiresSobriety
	}
	if u.AcceptsFamilies != nil {
		s.AcceptsFamilies = *u.AcceptsFamilies
	}
	return s
}

// ChangeEvent is emitted once per committed change, creation included.
type ChangeEvent struct {
	ID       string  `json:"id"`
	Revision int64   `json:"revision"`
	Record   Shelter `json:"record"`
}

// NewChangeEvent builds the event for a committed record.
func NewChangeEvent(s Shelter) ChangeEvent {
	return ChangeEvent{ID: s.ID, Revision: s.Revision, Record: s}
}
