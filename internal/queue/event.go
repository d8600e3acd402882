// Package queue defines the broker payload for shelter changes, its CBOR
// codec, and the audit consumer that records every change to a log file.
package queue

import (
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
)

// ContentType labels ShelterChanged messages on the wire.
const ContentType = "application/cbor"

// ShelterChanged is published once per committed change.  It carries the
// full mutable state so downstream consumers can act without calling back
// into the API.  Timestamps are Unix microseconds.
type ShelterChanged struct {
	ID               string `cbor:"id"`
	Revision         int64  `cbor:"revision"`
	Name             string `cbor:"name"`
	TotalBeds        int    `cbor:"total_beds"`
	AvailableBeds    int    `cbor:"available_beds"`
	AllowsPets       bool   `cbor:"allows_pets"`
	RequiresSobriety bool   `cbor:"requires_sobriety"`
	AcceptsFamilies  bool   `cbor:"accepts_families"`
	Status           string `cbor:"status"`
	UpdatedBy        string `cbor:"updated_by"`
	LastUpdatedUS    int64  `cbor:"last_updated_us"`
}

// FromEvent converts a committed change into its broker payload.
func FromEvent(ev model.ChangeEvent) ShelterChanged {
	r := ev.Record
	return ShelterChanged{
		ID:               ev.ID,
		Revision:         ev.Revision,
		Name:             r.Name,
		TotalBeds:        r.TotalBeds,
		AvailableBeds:    r.AvailableBeds,
		AllowsPets:       r.AllowsPets,
		RequiresSobriety: r.RequiresSobriety,
		AcceptsFamilies:  r.AcceptsFamilies,
		Status:           string(r.Status()),
		UpdatedBy:        r.UpdatedBy,
		LastUpdatedUS:    r.LastUpdated.UnixMicro(),
	}
}

// LastUpdated returns the commit time.
func (m ShelterChanged) LastUpdated() time.Time { return time.UnixMicro(m.LastUpdatedUS).UTC() }

// encMode uses Core Deterministic Encoding so the same change always
// produces identical bytes.
var encMode cbor.EncMode

// decMode ignores unknown fields so older consumers keep working when the
// payload grows.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("queue: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("queue: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes m.
func Marshal(m ShelterChanged) ([]byte, error) {
	return encMode.Marshal(m)
}

// Unmarshal decodes a message body and checks the fields every consumer
// relies on.
func Unmarshal(data []byte) (ShelterChanged, error) {
	var m ShelterChanged
	if err := decMode.Unmarshal(data, &m); err != nil {
		return ShelterChanged{}, fmt.Errorf("decode shelter change: %w", err)
	}
	if m.ID == "" {
		return ShelterChanged{}, fmt.Errorf("decode shelter change: missing id")
	}
	if m.Revision < 0 {
		return ShelterChanged{}, fmt.Errorf("decode shelter change %s: negative revision %d", m.ID, m.Revision)
	}
	return m, nil
}
