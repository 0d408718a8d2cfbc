// Package terminal drives the ui screens from a line-oriented shell.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/muesli/termenv"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/ui"
	"github.com/Overland-East-Bay/car-rental-client/internal/ui/render"
)

// PasswordReader prompts for a secret without echoing it.
type PasswordReader func(prompt string) (string, error)

type Options struct {
	// Color paints output at this terminal's color profile. Nil writes plain text.
	Color *termenv.Output
	// ReadPassword is used when login/signup omit the password. Nil reads the next input line.
	ReadPassword PasswordReader
}

type Shell struct {
	app  *ui.App
	in   *bufio.Scanner
	out  io.Writer
	opts Options
}

func NewShell(app *ui.App, in io.Reader, out io.Writer, opts Options) *Shell {
	return &Shell{app: app, in: bufio.NewScanner(in), out: out, opts: opts}
}

var errQuit = errors.New("quit")

// Run renders the current view and executes commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	s.render()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(s.out, s.prompt())
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		err := s.Execute(ctx, s.in.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(s.out, s.painter().Error(err.Error()))
		}
		s.flushAlerts()
		if err == nil {
			s.render()
		}
	}
}

func (s *Shell) prompt() string {
	if s.app.Route() == ui.RouteTabs {
		return string(s.app.Tab()) + "> "
	}
	return "> "
}

// Execute runs one command line. Usage problems are returned as errors; outcomes the user
// must see are raised as app alerts.
func (s *Shell) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return errQuit
	case "help", "?":
		fmt.Fprint(s.out, helpText)
		return nil
	case "theme":
		return s.theme(ctx, args)
	case "login", "signup":
		return s.authenticate(ctx, cmd, args)
	}

	if s.app.Route() != ui.RouteTabs {
		return errors.New("sign in first (login <email> [password])")
	}
	search := s.app.Search()

	switch cmd {
	case "logout":
		s.app.SignOut(ctx)
	case "tab":
		if len(args) != 1 {
			return errors.New("usage: tab rentals|search")
		}
		t := ui.Tab(strings.ToLower(args[0]))
		if t != ui.TabRentals && t != ui.TabSearch {
			return fmt.Errorf("unknown tab %q", args[0])
		}
		s.app.SelectTab(ctx, t)
	case "refresh":
		s.app.SelectTab(ctx, ui.TabRentals)
	case "date":
		if len(args) != 1 {
			return errors.New("usage: date <YYYY-MM-DD>")
		}
		s.app.SelectTab(ctx, ui.TabSearch)
		search.SetDate(args[0])
	case "search":
		s.app.SelectTab(ctx, ui.TabSearch)
		if len(args) > 0 {
			search.SetDate(args[0])
		}
		search.Search(ctx)
	case "sort":
		s.app.SelectTab(ctx, ui.TabSearch)
		search.ToggleSort()
	case "book":
		if len(args) != 1 {
			return errors.New("usage: book <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("not a car number: %q", args[0])
		}
		s.app.SelectTab(ctx, ui.TabSearch)
		return search.Book(n - 1)
	case "confirm":
		if _, ok := search.Confirmation(); !ok {
			return errors.New("nothing to confirm; book a car first")
		}
		if len(args) > 0 {
			search.SetRenterName(strings.Join(args, " "))
		}
		search.Confirm(ctx)
	case "cancel":
		search.Cancel()
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (s *Shell) authenticate(ctx context.Context, cmd string, args []string) error {
	if s.app.Route() == ui.RouteTabs {
		return errors.New("already signed in; logout first")
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: %s <email> [password]", cmd)
	}
	email := args[0]
	password := ""
	if len(args) == 2 {
		password = args[1]
	} else {
		p, err := s.readPassword("Password: ")
		if err != nil {
			return err
		}
		password = p
	}

	mode := ui.AuthLogin
	if cmd == "signup" {
		mode = ui.AuthSignup
	}
	s.app.Auth().SetMode(mode)
	s.app.Auth().Submit(ctx, email, password)
	return nil
}

func (s *Shell) readPassword(prompt string) (string, error) {
	if s.opts.ReadPassword != nil {
		return s.opts.ReadPassword(prompt)
	}
	fmt.Fprint(s.out, prompt)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}

func (s *Shell) theme(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.EqualFold(args[0], "toggle") {
		s.app.ToggleTheme(ctx)
		return nil
	}
	p, ok := domain.ParseThemePreference(strings.ToLower(args[0]))
	if !ok {
		return errors.New("usage: theme [light|dark|system|toggle]")
	}
	return s.app.SetTheme(ctx, p)
}

func (s *Shell) painter() render.Painter {
	profile := termenv.Ascii
	if s.opts.Color != nil {
		profile = s.opts.Color.Profile
	}
	return render.NewPainter(s.app.Scheme(), profile)
}

func (s *Shell) flushAlerts() {
	p := s.painter()
	for _, a := range s.app.TakeAlerts() {
		title := p.Primary(a.Title)
		switch a.Title {
		case ui.AlertAuthError, ui.AlertError, ui.AlertFailed:
			title = p.Error(a.Title)
		case ui.AlertBooked, ui.AlertSignedUp:
			title = p.Success(a.Title)
		}
		fmt.Fprintf(s.out, "%s: %s\n", title, a.Message)
	}
}

func (s *Shell) render() {
	v := view{app: s.app, p: s.painter()}
	fmt.Fprint(s.out, v.String())
}

const helpText = `Commands:
  login <email> [password]     sign in
  signup <email> [password]    create an account
  logout                       sign out
  tab rentals|search           switch tabs
  refresh                      reload my rentals
  date <YYYY-MM-DD>            pick the search date
  search [YYYY-MM-DD]          list cars free on the date
  sort                         toggle make/model order
  book <n>                     start booking car n
  confirm [name]               confirm the booking, optionally as name
  cancel                       close the booking dialog
  theme [light|dark|system|toggle]
  help                         show this help
  quit                         exit
`
