package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	c := &cli{api: newAPIClient(apiURL(), loadToken()), out: os.Stdout}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	api *apiClient
	out io.Writer
}

var errUsage = errors.New("invalid usage, see 'bloodbank help'")

func (c *cli) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "donor":
		return c.handleDonor(ctx, args)
	case "request":
		return c.handleRequest(ctx, args)
	case "stats":
		return c.stats(ctx)
	case "admin":
		return c.handleAdmin(ctx, args)
	case "help":
		printUsage(c.out)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (c *cli) handleDonor(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: bloodbank donor <register|list|availability>")
		return errUsage
	}
	switch args[0] {
	case "register":
		return c.registerDonor(ctx, args[1:])
	case "list":
		return c.listDonors(ctx, args[1:])
	case "availability":
		return c.availability(ctx)
	default:
		return fmt.Errorf("unknown donor command: %s", args[0])
	}
}

func (c *cli) handleRequest(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: bloodbank request <submit|list|show|approve|reject|fulfill>")
		return errUsage
	}
	switch args[0] {
	case "submit":
		return c.submitRequest(ctx, args[1:])
	case "list":
		return c.listRequests(ctx, args[1:])
	case "show":
		return c.showRequest(ctx, args[1:])
	case "approve":
		return c.setStatus(ctx, args[1:], domain.StatusApproved)
	case "reject":
		return c.setStatus(ctx, args[1:], domain.StatusRejected)
	case "fulfill":
		return c.setStatus(ctx, args[1:], domain.StatusFulfilled)
	default:
		return fmt.Errorf("unknown request command: %s", args[0])
	}
}

func (c *cli) handleAdmin(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: bloodbank admin <login|logout|who>")
		return errUsage
	}
	switch args[0] {
	case "login":
		return c.login(ctx, args[1:])
	case "logout":
		return c.logout(ctx)
	case "who":
		return c.who(ctx)
	default:
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

// Donor commands
func (c *cli) registerDonor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(c.out)
	var in domain.DonorInput
	fs.StringVar(&in.Name, "name", "", "full name")
	fs.IntVar(&in.Age, "age", 0, "age (18-65)")
	fs.StringVar(&in.BloodGroup, "blood-group", "", "A+, A-, B+, B-, AB+, AB-, O+ or O-")
	fs.StringVar(&in.City, "city", "", "city")
	fs.StringVar(&in.Contact, "contact", "", "phone number")
	fs.StringVar(&in.Email, "email", "", "email (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// same checks the server runs, so typos fail before the round trip
	if err := domain.ValidateDonor(in); err != nil {
		return err
	}

	var d domain.Donor
	if err := c.api.do(ctx, http.MethodPost, "/api/donors", nil, in, &d); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Donor registered: %s (%s)\n", d.ID, d.BloodGroup)
	return nil
}

func (c *cli) listDonors(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.out)
	group := fs.String("blood-group", "", "filter by blood group")
	city := fs.String("city", "", "filter by city")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := url.Values{}
	if *group != "" {
		q.Set("bloodGroup", *group)
	}
	if *city != "" {
		q.Set("city", *city)
	}
	var donors []domain.Donor
	if err := c.api.do(ctx, http.MethodGet, "/api/donors", q, nil, &donors); err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAGE\tGROUP\tCITY\tCONTACT\tREGISTERED")
	for _, d := range donors {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			d.ID, d.Name, d.Age, d.BloodGroup, d.City, d.Contact, d.RegistrationDate.Format(time.DateOnly))
	}
	return w.Flush()
}

func (c *cli) availability(ctx context.Context) error {
	var rows []struct {
		BloodGroup string `json:"bloodGroup"`
		Count      int    `json:"count"`
	}
	if err := c.api.do(ctx, http.MethodGet, "/api/donors/availability", nil, nil, &rows); err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tDONORS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\n", r.BloodGroup, r.Count)
	}
	return w.Flush()
}

// Request commands
func (c *cli) submitRequest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(c.out)
	var in domain.RequestInput
	fs.StringVar(&in.RequesterName, "name", "", "requester name")
	fs.StringVar(&in.RequesterType, "type", domain.RequesterPatient, "patient or hospital")
	fs.StringVar(&in.BloodGroup, "blood-group", "", "blood group needed")
	fs.StringVar(&in.UrgencyLevel, "urgency", string(domain.UrgencyNormal), "low, normal, high or critical")
	fs.StringVar(&in.City, "city", "", "city")
	fs.StringVar(&in.Contact, "contact", "", "phone number")
	fs.StringVar(&in.Email, "email", "", "email for status updates (optional)")
	fs.IntVar(&in.UnitsNeeded, "units", 1, "units needed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := domain.ValidateRequest(in); err != nil {
		return err
	}

	var r domain.BloodRequest
	if err := c.api.do(ctx, http.MethodPost, "/api/requests", nil, in, &r); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Request submitted: %s (%s)\n", r.ID, r.Status)
	return nil
}

func (c *cli) listRequests(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.out)
	status := fs.String("status", "", "filter by status")
	group := fs.String("blood-group", "", "filter by blood group")
	urgency := fs.String("urgency", "", "filter by urgency")
	city := fs.String("city", "", "filter by city")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := url.Values{}
	for k, v := range map[string]string{"status": *status, "bloodGroup": *group, "urgency": *urgency, "city": *city} {
		if v != "" {
			q.Set(k, v)
		}
	}
	var reqs []domain.BloodRequest
	if err := c.api.do(ctx, http.MethodGet, "/api/requests", q, nil, &reqs); err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREQUESTER\tGROUP\tUNITS\tURGENCY\tCITY\tSTATUS\tREQUESTED")
	for _, r := range reqs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.RequesterName, r.BloodGroup, r.UnitsNeeded, r.UrgencyLevel, r.City, r.Status,
			r.RequestDate.Format(time.DateOnly))
	}
	return w.Flush()
}

func (c *cli) showRequest(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: bloodbank request show <request-id>")
		return errUsage
	}
	var r domain.BloodRequest
	if err := c.api.do(ctx, http.MethodGet, "/api/requests/"+url.PathEscape(args[0]), nil, nil, &r); err != nil {
		return err
	}
	printRequest(c.out, r)
	return nil
}

func (c *cli) setStatus(ctx context.Context, args []string, to domain.Status) error {
	if len(args) != 1 {
		fmt.Fprintf(c.out, "Usage: bloodbank request %s <request-id>\n", verb(to))
		return errUsage
	}
	var r domain.BloodRequest
	body := map[string]string{"status": string(to)}
	if err := c.api.do(ctx, http.MethodPut, "/api/requests/"+url.PathEscape(args[0])+"/status", nil, body, &r); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Request %s is now %s\n", r.ID, r.Status)
	return nil
}

func verb(s domain.Status) string {
	switch s {
	case domain.StatusApproved:
		return "approve"
	case domain.StatusRejected:
		return "reject"
	default:
		return "fulfill"
	}
}

func printRequest(out io.Writer, r domain.BloodRequest) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", r.ID)
	fmt.Fprintf(w, "Requester:\t%s (%s)\n", r.RequesterName, r.RequesterType)
	fmt.Fprintf(w, "Blood group:\t%s\n", r.BloodGroup)
	fmt.Fprintf(w, "Units:\t%d\n", r.UnitsNeeded)
	fmt.Fprintf(w, "Urgency:\t%s\n", r.UrgencyLevel)
	fmt.Fprintf(w, "City:\t%s\n", r.City)
	fmt.Fprintf(w, "Contact:\t%s\n", r.Contact)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	fmt.Fprintf(w, "Requested:\t%s\n", r.RequestDate.Format(time.RFC3339))
	if r.FulfilledDate != nil {
		fmt.Fprintf(w, "Fulfilled:\t%s\n", r.FulfilledDate.Format(time.RFC3339))
	}
	_ = w.Flush()
	if r.AdminNotes != "" {
		fmt.Fprintf(out, "Notes:\n%s\n", r.AdminNotes)
	}
}

func (c *cli) stats(ctx context.Context) error {
	var s domain.Stats
	if err := c.api.do(ctx, http.MethodGet, "/api/stats", nil, nil, &s); err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Donors:\t%d\n", s.TotalDonors)
	fmt.Fprintf(w, "Requests:\t%d\n", s.TotalRequests)
	fmt.Fprintf(w, "  pending:\t%d (%d critical)\n", s.PendingRequests, s.CriticalPending)
	fmt.Fprintf(w, "  approved:\t%d\n", s.ApprovedRequests)
	fmt.Fprintf(w, "  rejected:\t%d\n", s.RejectedRequests)
	fmt.Fprintf(w, "  fulfilled:\t%d\n", s.FulfilledRequests)
	for _, g := range domain.BloodGroups {
		fmt.Fprintf(w, "  %s donors:\t%d\n", g, s.DonorsByBloodGroup[g])
	}
	return w.Flush()
}

// Admin commands
func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(c.out)
	username := fs.String("username", "admin", "admin username")
	password := fs.String("password", os.Getenv("BLOODBANK_PASSWORD"), "admin password (or BLOODBANK_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		fs.PrintDefaults()
		return errors.New("password is required")
	}

	var res struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	body := map[string]string{"username": *username, "password": *password}
	if err := c.api.do(ctx, http.MethodPost, "/api/admin/login", nil, body, &res); err != nil {
		return err
	}
	if err := saveToken(res.Token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	c.api.token = res.Token
	fmt.Fprintf(c.out, "✓ Logged in as %s until %s\n", *username, res.ExpiresAt.Local().Format(time.Kitchen))
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if c.api.token != "" {
		var apiErr *apiError
		err := c.api.do(ctx, http.MethodPost, "/api/admin/logout", nil, nil, nil)
		// an expired token is as good as revoked
		if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized) {
			return err
		}
	}
	if err := removeToken(); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	c.api.token = ""
	fmt.Fprintln(c.out, "✓ Logged out")
	return nil
}

func (c *cli) who(ctx context.Context) error {
	if c.api.token == "" {
		fmt.Fprintln(c.out, "Not logged in")
		return nil
	}
	var s struct {
		Username  string    `json:"username"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := c.api.do(ctx, http.MethodGet, "/api/admin/session", nil, nil, &s); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Logged in as %s (expires %s)\n", s.Username, s.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Blood Bank CLI

Usage:
  bloodbank <command> [options]

Commands:
  donor      Donor operations (register, list, availability)
  request    Blood requests (submit, list, show, approve, reject, fulfill)
  stats      Registry summary
  admin      Admin session (login, logout, who)
  help       Show this help message

Environment Variables:
  BLOODBANK_API        API base URL (default: http://localhost:8080)
  BLOODBANK_PASSWORD   Admin password for 'admin login'

Examples:
  bloodbank donor register -name "Asha Rao" -age 29 -blood-group O- -city Pune -contact 9876543210
  bloodbank request submit -name "Jane Doe" -blood-group O- -urgency critical -city Metro -contact 5551234567 -units 2
  bloodbank admin login -username admin
  bloodbank request list -status pending
  bloodbank request approve <request-id>
`)
}
