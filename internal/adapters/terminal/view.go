package terminal

import (
	"fmt"
	"strings"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/ui"
	"github.com/Overland-East-Bay/car-rental-client/internal/ui/render"
)

const width = 48

type view struct {
	app *ui.App
	p   render.Painter
}

func (v view) String() string {
	var b strings.Builder
	switch v.app.Route() {
	case ui.RouteLoading:
		b.WriteString(v.p.Secondary("Loading...") + "\n")
	case ui.RouteAuth:
		v.auth(&b)
	case ui.RouteTabs:
		v.header(&b)
		if v.app.Tab() == ui.TabSearch {
			v.search(&b)
		} else {
			v.rentals(&b)
		}
	}
	return b.String()
}

func (v view) auth(b *strings.Builder) {
	a := v.app.Auth()
	fmt.Fprintf(b, "%s  %s\n", v.p.Text("Car Rental"), v.p.Secondary(v.app.ThemeLabel()))
	b.WriteString(v.p.Rule(width) + "\n")
	verb := "login"
	if a.Mode() == ui.AuthSignup {
		verb = "signup"
	}
	fmt.Fprintf(b, "%s  %s <email> [password]\n", v.p.Button(a.SubmitLabel()), verb)
	fmt.Fprintf(b, "%s\n", v.p.Primary(a.SwitchLabel()))
}

func (v view) header(b *strings.Builder) {
	tabs := make([]string, 0, 2)
	for _, t := range []ui.Tab{ui.TabRentals, ui.TabSearch} {
		if t == v.app.Tab() {
			tabs = append(tabs, v.p.Primary("["+t.Title()+"]"))
		} else {
			tabs = append(tabs, v.p.Secondary(" "+t.Title()+" "))
		}
	}
	email := ""
	if u, ok := v.app.User(); ok {
		email = u.Email
	}
	fmt.Fprintf(b, "%s   %s  %s  %s\n", strings.Join(tabs, " "), v.p.Secondary(v.app.ThemeLabel()), v.p.Secondary(email), v.p.Error("Log out"))
	b.WriteString(v.p.Rule(width) + "\n")
}

func (v view) rentals(b *strings.Builder) {
	r := v.app.Rentals()
	items := r.Items()
	if len(items) == 0 {
		if r.Loaded() {
			b.WriteString(v.p.Secondary(ui.RentalsEmptyText) + "\n")
		}
		return
	}
	for _, it := range items {
		ret := "-"
		if it.ExpectedReturnDate != nil {
			ret = it.ExpectedReturnDate.Display()
		}
		fmt.Fprintf(b, "%s\n", v.p.Text(it.Car.Title()))
		fmt.Fprintf(b, "  %s\n", v.p.Secondary(it.Car.Color))
		fmt.Fprintf(b, "  Date: %s\n  Return: %s\n  Renter: %s\n", it.BookingDate.Display(), ret, it.RenterName)
	}
}

func (v view) search(b *strings.Builder) {
	s := v.app.Search()
	order := "default order"
	if s.Sorted() {
		order = "make/model"
	}
	fmt.Fprintf(b, "Select a date: %s (%s)\n", v.p.Text(s.Day().String()), v.p.Secondary(s.Day().Display()))
	fmt.Fprintf(b, "%s  sort: %s\n", v.p.Button("Search available cars"), v.p.Secondary(order))

	cars := s.Cars()
	if len(cars) == 0 {
		b.WriteString(v.p.Secondary(ui.SearchEmptyText) + "\n")
	}
	for i, c := range cars {
		fmt.Fprintf(b, "%2d. %s  %s\n    %s\n", i+1, v.p.Text(c.Title()), v.p.Secondary(c.Color), v.p.Secondary(c.ImageOrPlaceholder()))
	}

	if c, ok := s.Confirmation(); ok {
		v.confirmation(b, c)
	}
}

func (v view) confirmation(b *strings.Builder, c ui.Confirmation) {
	b.WriteString(v.p.Rule(width) + "\n")
	b.WriteString(v.p.Text("Confirm booking") + "\n")
	fmt.Fprintf(b, "%s\n", v.p.Secondary(subtitle(c.Car, c.Day)))
	fmt.Fprintf(b, "Your name: %s\n", c.RenterName)
	fmt.Fprintf(b, "%s confirm [name]   %s cancel\n", v.p.Button("Confirm"), v.p.Secondary("Cancel:"))
}

func subtitle(c domain.Car, d domain.Day) string {
	return c.Title() + " • " + c.Color + " • " + d.String()
}
