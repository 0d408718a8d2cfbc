// Package demo holds the sample catalog served by the in-process and dev backends.
package demo

import "github.com/Overland-East-Bay/car-rental-client/internal/domain"

func imageURL(s string) *string { return &s }

// Cars returns a fresh copy of the sample catalog. IDs are uuids so the same rows can be
// inserted into postgres.
func Cars() []domain.Car {
	return []domain.Car{
		{ID: "2b1e6a52-1f0c-4f3e-9a57-6c0d1c2e0001", Make: "Toyota", Model: "Corolla", Color: "Blue"},
		{ID: "2b1e6a52-1f0c-4f3e-9a57-6c0d1c2e0002", Make: "Honda", Model: "Civic", Color: "Red"},
		{ID: "2b1e6a52-1f0c-4f3e-9a57-6c0d1c2e0003", Make: "Ford", Model: "Focus", Color: "White"},
		{ID: "2b1e6a52-1f0c-4f3e-9a57-6c0d1c2e0004", Make: "Tesla", Model: "Model 3", Color: "Black",
			ImageURL: imageURL("https://placehold.co/160x120?text=Model+3")},
		{ID: "2b1e6a52-1f0c-4f3e-9a57-6c0d1c2e0005", Make: "Volkswagen", Model: "Golf", Color: "Grey"},
	}
}
