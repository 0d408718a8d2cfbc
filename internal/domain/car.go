package domain

// PlaceholderImageURL is shown for cars without an image (or whose image failed to load).
const PlaceholderImageURL = "https://placehold.co/160x120?text=Car"

// Car is a rentable car. Cars are owned by the backend and read-only here.
type Car struct {
	ID    CarID
	Make  string
	Model string
	Color string
	// ImageURL is optional; nil means unset.
	ImageURL *string
}

// Title is the "make model" heading used in lists.
func (c Car) Title() string {
	switch {
	case c.Make == "":
		return c.Model
	case c.Model == "":
		return c.Make
	}
	return c.Make + " " + c.Model
}

// ImageOrPlaceholder returns the car's image URL or PlaceholderImageURL.
func (c Car) ImageOrPlaceholder() string {
	if c.ImageURL == nil || *c.ImageURL == "" {
		return PlaceholderImageURL
	}
	return *c.ImageURL
}
