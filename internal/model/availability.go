package model

// Status is the coarse availability bucket shown on dashboards.
type Status string

const (
	StatusFull      Status = "FULL"      // no free beds
	StatusLimited   Status = "LIMITED"   // under a quarter of beds free
	StatusAvailable Status = "AVAILABLE" // a quarter or more free
)

// limitedPercent is the free-bed percentage below which a shelter is LIMITED.
const limitedPercent = 25

// Availability buckets a bed count.  A shelter with no capacity is FULL.
func Availability(available, total int) Status {
	if total <= 0 || available <= 0 {
		return StatusFull
	}
	if available*100 < total*limitedPercent {
		return StatusLimited
	}
	return StatusAvailable
}

// Summary aggregates a snapshot for the public dashboard header.
type Summary struct {
	Shelters           int `json:"shelters"`
	SheltersWithBeds   int `json:"shelters_with_beds"`
	AvailableBeds      int `json:"available_beds"`
	TotalBeds          int `json:"total_beds"`
	AcceptsFamilies    int `json:"accepts_families"`
	AllowsPets         int `json:"allows_pets"`
	NoSobrietyRequired int `json:"no_sobriety_required"`
}

// Summarize folds a list of shelters into a Summary.
func Summarize(list []Shelter) Summary {
	var s Summary
	for _, sh := range list {
		s.Shelters++
		s.AvailableBeds += sh.AvailableBeds
		s.TotalBeds += sh.TotalBeds
		if sh.AvailableBeds > 0 {
			s.SheltersWithBeds++
		}
		if sh.AcceptsFamilies {
			s.AcceptsFamilies++
		}
		if sh.AllowsPets {
			s.AllowsPets++
		}
		if !sh.RequiresSobriety {
			s.NoSobrietyRequired++
		}
	}
	return s
}
