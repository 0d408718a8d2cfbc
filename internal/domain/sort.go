package domain

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortCarsByMakeModel returns a copy of cars ordered by make, then model, using
// English collation (case differences break ties, they do not dominate). Equal
// make/model pairs fall back to ID so the order is total and sorting is idempotent.
func SortCarsByMakeModel(cars []Car) []Car {
	out := make([]Car, len(cars))
	copy(out, cars)

	// Collators are not safe for concurrent use.
	c := collate.New(language.English)
	sort.SliceStable(out, func(i, j int) bool {
		if r := c.CompareString(out[i].Make, out[j].Make); r != 0 {
			return r < 0
		}
		if r := c.CompareString(out[i].Model, out[j].Model); r != 0 {
			return r < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortRentalsByDate orders rentals ascending by booking date, ties by booking ID.
func SortRentalsByDate(rs []Rental) {
	sort.SliceStable(rs, func(i, j int) bool {
		di, dj := rs[i].BookingDate, rs[j].BookingDate
		if di != dj {
			return di.Before(dj)
		}
		return rs[i].ID < rs[j].ID
	})
}
