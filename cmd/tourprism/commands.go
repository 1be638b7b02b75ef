package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"

	"tourprism/internal/api"
	"tourprism/internal/bulk"
	"tourprism/internal/feed"
	"tourprism/internal/forms"
	"tourprism/internal/geo"
	"tourprism/internal/models"
	"tourprism/internal/notifications"
	"tourprism/internal/postalert"
	"tourprism/pkg/errors"
	"tourprism/pkg/util"
)

// errMissingArg is returned when a command needs an alert id or a file.
var errMissingArg = stderrors.New("missing argument")

// describe renders an error the way the web pages do: field messages first, then the banner.
func (a *app) describe(err error, data map[string]interface{}) string {
	fields := errors.GetFields(err)
	if len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		sort.Strings(names)
		lines := make([]string, 0, len(names))
		for _, f := range names {
			lines = append(lines, f+": "+a.tr.TWithDefaultLang(fields[f], data))
		}
		return strings.Join(lines, "\n")
	}
	if id := errors.GetMsgID(err); id != "" {
		return a.tr.TWithDefaultLang(id, data)
	}
	if errors.IsKind(err, errors.KindRejected) && errors.GetMessage(err) != "" {
		return errors.GetMessage(err)
	}
	return err.Error()
}

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := stdin.ReadString('\n')
	if err != nil && !stderrors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) cooldown() *forms.Cooldown {
	return forms.NewCooldown(a.cfg.OTPCooldown, time.Now)
}

// verify keeps asking for the emailed code until the flow completes or the input ends.
func (a *app) verify(ctx context.Context, submit func(context.Context, string) error, resend func(context.Context) error, cd *forms.Cooldown) error {
	fmt.Println("A 6 digit code was sent to your email. Type \"resend\" to get a new one.")
	for {
		code, err := prompt("code: ")
		if err != nil {
			return err
		}
		if code == "" {
			return stderrors.New("verification aborted")
		}
		if code == "resend" {
			if err := resend(ctx); err != nil {
				fmt.Println(a.describe(err, map[string]interface{}{"Seconds": cd.Seconds()}))
			} else {
				fmt.Println(a.tr.TWithDefaultLang("otp.sent", nil))
			}
			continue
		}
		err = submit(ctx, code)
		if err == nil {
			return nil
		}
		fmt.Println(a.describe(err, nil))
		if !errors.IsKind(err, errors.KindValidation) && !errors.IsKind(err, errors.KindRejected) {
			return err
		}
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (asked for when empty)")
	fs.Parse(args)

	if *password == "" {
		pw, err := prompt("password: ")
		if err != nil {
			return err
		}
		*password = pw
	}

	f := forms.NewLoginFlow(a.client, a.sess, a.cooldown(), "")
	if err := f.SubmitCredentials(ctx, *email, *password); err != nil {
		return stderrors.New(a.describe(err, nil))
	}
	if f.Step() == forms.StepOTP {
		if err := a.verify(ctx, f.SubmitOTP, f.Resend, f.Cooldown()); err != nil {
			return err
		}
	}
	a.log.WithField("email", f.Email()).Info("signed in")
	return nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (asked for when empty)")
	terms := fs.Bool("accept-terms", false, "agree to the terms and conditions")
	fs.Parse(args)

	if *password == "" {
		pw, err := prompt("password: ")
		if err != nil {
			return err
		}
		*password = pw
	}

	f := forms.NewSignUpFlow(a.client, a.sess, a.cooldown())
	if err := f.SubmitCredentials(ctx, *email, *password, *terms); err != nil {
		return stderrors.New(a.describe(err, nil))
	}
	if f.Step() == forms.StepOTP {
		if err := a.verify(ctx, f.SubmitOTP, f.Resend, f.Cooldown()); err != nil {
			return err
		}
	}
	a.log.WithField("email", f.Email()).Info("account created")
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.sess.Clear(ctx); err != nil {
		return err
	}
	a.log.Info("signed out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	s := a.sess.Current(ctx)
	if !s.Authenticated() {
		fmt.Println("not signed in")
		return nil
	}
	if a.sess.Expired(ctx) {
		fmt.Println(a.tr.TWithDefaultLang("error.session_expired", nil))
		return nil
	}
	if s.User != nil {
		fmt.Printf("%s (%s)\n", s.User.Email, s.User.ID)
		return nil
	}
	fmt.Println("signed in")
	return nil
}

func (a *app) requireSession(ctx context.Context) error {
	if !a.sess.Current(ctx).Authenticated() {
		return stderrors.New(a.tr.TWithDefaultLang("guard.login_required", nil))
	}
	return nil
}

func parseCoords(s string) (models.Coords, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Coords{}, fmt.Errorf("want lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Coords{}, err
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Coords{}, err
	}
	return models.Coords{Latitude: lat, Longitude: lon}, nil
}

func (a *app) newFeed(ctx context.Context, city string) *feed.Controller {
	if city == "" {
		city = a.cfg.DefaultCity
	}
	return feed.NewController(ctx, a.client, a.sess, feed.Options{
		DefaultCity:   city,
		DefaultCenter: models.Coords{Latitude: a.cfg.DefaultCenterLat, Longitude: a.cfg.DefaultCenterLon},
		PageSize:      a.cfg.FeedPageSize,
		ShareBaseURL:  a.cfg.PublicURL,
	}, feed.WithGeocoder(geo.NewNominatim(a.cfg.GeocoderURL, nil)), feed.WithFailurePolicy(feed.LogOnly))
}

func (a *app) printNotices(c *feed.Controller) {
	for _, n := range c.TakeNotices() {
		text := n.Raw
		if text == "" {
			if q, ok := n.Data["Quality"].(string); ok {
				n.Data["Quality"] = a.tr.TWithDefaultLang("location.quality."+q, nil)
			}
			text = a.tr.TWithDefaultLang(n.MsgID, n.Data)
		}
		fmt.Printf("[%s] %s\n", n.Level, text)
	}
}

func (a *app) feed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	city := fs.String("city", "", "city to list (defaults to DEFAULT_CITY)")
	near := fs.String("near", "", "use this position, as lat,lon")
	byIP := fs.Bool("geoip", false, "locate by public IP with the GEOIP_DB database")
	ip := fs.String("ip", "", "public IP used with -geoip")
	reset := fs.Bool("reset", false, "forget the stored position")
	types := fs.String("types", "", "comma separated incident types")
	days := fs.Int("days", 0, "only alerts from the last N days")
	distance := fs.Int("distance", 0, "only alerts within N km")
	sortBy := fs.String("sort", string(models.SortRelevant), "relevant|reported|newest|oldest")
	pages := fs.Int("pages", 1, "how many pages to load")
	geojsonOut := fs.String("geojson", "", "write the visible alerts to this GeoJSON file")
	fs.Parse(args)

	if err := a.requireSession(ctx); err != nil {
		return err
	}
	c := a.newFeed(ctx, *city)
	if *reset {
		if err := c.ResetLocation(ctx); err != nil {
			return stderrors.New(a.describe(err, nil))
		}
	}

	switch {
	case *near != "":
		pos, err := parseCoords(*near)
		if err != nil {
			return err
		}
		if err := c.ResolveMyLocation(ctx, geo.Fixed{Coords: pos, Accuracy: 10}); err != nil {
			a.printNotices(c)
			return err
		}
	case *byIP:
		if a.cfg.GeoIPDB == "" {
			return stderrors.New("GEOIP_DB is not set")
		}
		reader, err := geoip2.Open(a.cfg.GeoIPDB)
		if err != nil {
			return err
		}
		defer reader.Close()
		if err := c.ResolveMyLocation(ctx, geo.NewNetwork(reader, *ip)); err != nil {
			a.printNotices(c)
			return err
		}
		c.AcceptLowAccuracy()
	}

	filters := models.FilterState{SortBy: models.SortBy(*sortBy), TimeRangeDays: *days, DistanceKm: *distance}
	if *types != "" {
		for _, t := range strings.Split(*types, ",") {
			filters.IncidentTypes = append(filters.IncidentTypes, strings.TrimSpace(t))
		}
	}
	if err := c.ApplyFilters(ctx, filters); err != nil && errors.IsKind(err, errors.KindUnauthorized) {
		return stderrors.New(a.describe(err, nil))
	}
	for i := 1; i < *pages && c.HasMore(); i++ {
		if err := c.ShowMore(ctx); err != nil {
			a.log.WithError(err).Debug("show more")
			break
		}
	}

	a.printNotices(c)
	v := c.View(ctx)
	if v.ErrorMsgID != "" {
		return stderrors.New(a.tr.TWithDefaultLang(v.ErrorMsgID, nil))
	}
	fmt.Printf("%s: %d alerts\n", v.Location.Label, v.Count)
	now := time.Now()
	for _, al := range v.Alerts {
		fmt.Printf("\n%s  %s  %s ago\n  %s\n  %s\n  likes %d  shares %d\n",
			al.ID, al.DisplayType(), util.TimeAgo(al.CreatedAt, now), al.Location, al.Description, al.Likes, al.Shares)
	}
	if v.HasMore {
		fmt.Println("\nmore alerts available, use -pages")
	}

	if *geojsonOut != "" {
		b, err := c.GeoJSON()
		if err != nil {
			return err
		}
		if err := os.WriteFile(*geojsonOut, b, 0o644); err != nil {
			return err
		}
		a.log.WithField("file", *geojsonOut).Info("geojson written")
	}
	return nil
}

func (a *app) act(ctx context.Context, action string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s: alert id: %w", action, errMissingArg)
	}
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	c := a.newFeed(ctx, "")
	var r feed.ActionResult
	switch action {
	case "like":
		r = c.Like(ctx, args[0])
	case "flag":
		r = c.Flag(ctx, args[0])
	}
	if r.Err != nil {
		return stderrors.New(a.describe(r.Err, nil))
	}
	if r.Alert != nil {
		fmt.Printf("%s: likes %d  shares %d\n", r.Alert.ID, r.Alert.Likes, r.Alert.Shares)
		return nil
	}
	fmt.Printf("%s: %sd\n", args[0], action)
	return nil
}

func readMedia(paths string) ([]api.Upload, error) {
	if paths == "" {
		return nil, nil
	}
	var out []api.Upload
	for _, p := range strings.Split(paths, ",") {
		p = strings.TrimSpace(p)
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, api.Upload{Filename: filepath.Base(p), ContentType: http.DetectContentType(data), Data: data})
	}
	return out, nil
}

func (a *app) post(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	typ := fs.String("type", "", "incident type: "+strings.Join(models.PostIncidentTypes, ", "))
	other := fs.String("other", "", "incident type text when -type is Other")
	desc := fs.String("desc", "", "what happened")
	location := fs.String("location", "", "address shown with the alert")
	city := fs.String("city", "", "city of the address")
	at := fs.String("at", "", "coordinates of the address, as lat,lon")
	placeID := fs.String("place", "", "place id from the places service instead of -location/-at")
	media := fs.String("media", "", "comma separated photo or video files")
	fs.Parse(args)

	var places postalert.PlaceResolver
	if p := geo.NewPlaces(a.cfg.PlacesURL, a.cfg.PlacesAPIKey, nil); p.Enabled() {
		places = p
	}
	c := postalert.NewController(a.client, places, a.sess)
	if err := c.Mount(ctx); err != nil {
		return stderrors.New(a.tr.TWithDefaultLang("guard.login_to_post", nil))
	}

	uploads, err := readMedia(*media)
	if err != nil {
		return err
	}
	err = c.Update(func(f *postalert.Form) error {
		f.SetIncidentType(*typ)
		f.SetOtherType(*other)
		f.SetDescription(*desc)
		if *at != "" {
			pos, err := parseCoords(*at)
			if err != nil {
				return err
			}
			f.SetPlace(geo.Place{Address: *location, Coords: pos, City: *city})
		} else {
			f.SetLocationText(*location)
		}
		if len(uploads) > 0 {
			return f.AddMedia(uploads...)
		}
		return nil
	})
	if err != nil {
		return stderrors.New(a.describe(err, nil))
	}
	if *placeID != "" {
		if err := c.PickPlace(ctx, *placeID); err != nil {
			return stderrors.New(a.describe(err, nil))
		}
	}

	if err := c.Submit(ctx); err != nil {
		if stderrors.Is(err, postalert.ErrLoginRequired) {
			return stderrors.New(a.tr.TWithDefaultLang("guard.login_to_post", nil))
		}
		return stderrors.New(a.describe(err, nil))
	}
	fmt.Println(a.tr.TWithDefaultLang("alert.submitted", nil))
	if _, created := c.Submitted(); created != nil && created.ID != "" {
		fmt.Println(strings.TrimRight(a.cfg.PublicURL, "/") + "/alerts/" + created.ID)
	}
	return nil
}

func (a *app) notifications(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ExitOnError)
	unread := fs.Bool("unread", false, "only unread notifications")
	readAll := fs.Bool("read-all", false, "mark everything as read")
	read := fs.String("read", "", "mark one notification as read")
	del := fs.String("delete", "", "delete one notification")
	all := fs.Bool("all", false, "show every notification, not just the first page")
	fs.Parse(args)

	if err := a.requireSession(ctx); err != nil {
		return err
	}
	p := notifications.NewPanel(a.client, nil, 0, nil)
	if err := p.Refresh(ctx); err != nil {
		return stderrors.New(a.describe(err, nil))
	}
	var err error
	switch {
	case *readAll:
		err = p.MarkAllRead(ctx)
	case *read != "":
		err = p.MarkRead(ctx, *read)
	case *del != "":
		err = p.Delete(ctx, *del)
	}
	if err != nil {
		return stderrors.New(a.describe(err, nil))
	}
	p.SetUnreadOnly(*unread)

	v := p.View()
	for *all && v.HasMore {
		p.ShowMore()
		v = p.View()
	}
	if v.Empty {
		fmt.Println(a.tr.TWithDefaultLang("notifications.empty", nil))
		return nil
	}
	fmt.Printf("%d unread of %d\n", v.Unread, v.Total)
	now := time.Now()
	for _, n := range v.Items {
		mark := " "
		if !n.IsRead {
			mark = "*"
		}
		fmt.Printf("%s %s  %s  (%s ago)\n    %s\n", mark, n.ID, n.Title, util.TimeAgo(n.CreatedAt, now), n.Message)
	}
	if v.HasMore {
		fmt.Println("more notifications available, use -all")
	}
	return nil
}

func (a *app) bulk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bulk", flag.ExitOnError)
	template := fs.String("template", "", "download the CSV template to this path")
	fs.Parse(args)

	if err := a.requireSession(ctx); err != nil {
		return err
	}
	u := bulk.NewUploader(a.client)
	if *template != "" {
		b, err := u.Template(ctx)
		if err != nil {
			return stderrors.New(a.describe(err, nil))
		}
		return os.WriteFile(*template, b, 0o644)
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("bulk: csv file: %w", errMissingArg)
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := u.Upload(ctx, &bulk.File{Name: filepath.Base(path), Data: data})
	if err != nil {
		return stderrors.New(a.describe(err, nil))
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
	fmt.Printf("%d created, %d rejected\n", res.SuccessCount, res.ErrorCount)
	for _, row := range res.Errors {
		fmt.Printf("  row %d: %s\n", row.Row, strings.Join(row.Errors, "; "))
	}
	return nil
}
