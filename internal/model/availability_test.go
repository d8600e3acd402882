package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailability(t *testing.T) {
	cases := []struct {
		name             string
		available, total int
		want             Status
	}{
		{"no capacity", 0, 0, StatusFull},
		{"full", 0, 20, StatusFull},
		{"one of twenty", 1, 20, StatusLimited},
		{"just under a quarter", 4, 20, StatusLimited},
		{"exactly a quarter", 5, 20, StatusAvailable},
		{"all free", 20, 20, StatusAvailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Availability(tc.available, tc.total))
		})
	}
}

func TestSummarize(t *testing.T) {
	list := []Shelter{
		{ID: "a", TotalBeds: 20, AvailableBeds: 5, AcceptsFamilies: true},
		{ID: "b", TotalBeds: 10, AvailableBeds: 0, AllowsPets: true, RequiresSobriety: true},
		{ID: "c", TotalBeds: 8, AvailableBeds: 8},
	}
	got := Summarize(list)
	assert.Equal(t, Summary{
		Shelters:           3,
		SheltersWithBeds:   2,
		AvailableBeds:      13,
		TotalBeds:          38,
		AcceptsFamilies:    1,
		AllowsPets:         1,
		NoSobrietyRequired: 2,
	}, got)
}

func TestShelterUpdateApply(t *testing.T) {
	beds := 3
	pets := true
	u := ShelterUpdate{AvailableBeds: &beds, AllowsPets: &pets}
	assert.False(t, u.Empty())
	assert.True(t, ShelterUpdate{}.Empty())

	before := Shelter{ID: "s1", TotalBeds: 20, AvailableBeds: 5, AcceptsFamilies: true}
	after := u.Apply(before)
	assert.Equal(t, 3, after.AvailableBeds)
	assert.True(t, after.AllowsPets)
	assert.True(t, after.AcceptsFamilies)
	assert.Equal(t, 5, before.AvailableBeds, "Apply must not mutate its argument")
}
