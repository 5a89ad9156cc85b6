package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"wafiPortal/internal/backend"
	"wafiPortal/internal/config"
	"wafiPortal/internal/review"
	"wafiPortal/internal/session"
	"wafiPortal/internal/submission"
	"wafiPortal/internal/validation"
)

// console holds the admin session of one run. Tokens live in memory only.
type console struct {
	state  *session.Context
	conn   *backend.Conn
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
	now    func() time.Time
}

func newConsole(cfg config.BackendConfig, logger *slog.Logger, in io.Reader, out io.Writer) *console {
	store := session.NewMemoryStore()
	conn := backend.New(cfg, backend.WithLogger(logger)).Bind(session.Tokens{Store: store})
	return &console{
		state:  session.NewContext(store, conn, logger),
		conn:   conn,
		logger: logger,
		in:     in,
		out:    out,
		now:    time.Now,
	}
}

func (c *console) run(ctx context.Context, username, password string, args []string) error {
	if err := c.state.Init(ctx); err != nil {
		return err
	}
	err := c.state.Login(ctx, submission.LoginCredentials{Username: username, Password: password})
	if fieldErrs, ok := validation.AsFieldErrors(err); ok {
		return fmt.Errorf("invalid credentials: %s", fieldErrs.Error())
	}
	if backend.IsUnauthorized(err) {
		return errors.New("اسم المستخدم أو كلمة المرور غير صحيحة")
	}
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer func() {
		if err := c.state.Logout(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("logout failed", slog.Any("error", err))
		}
	}()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		u := c.state.User()
		fmt.Fprintf(c.out, "logged in as %s (%s)\n", u.Username, u.Role)
		return nil
	case "list":
		return c.list(ctx, rest)
	case "show":
		if len(rest) != 1 {
			return errors.New("usage: show <id>")
		}
		return c.show(ctx, rest[0])
	case "status":
		if len(rest) < 2 {
			return errors.New("usage: status <id> <status> [notes]")
		}
		return c.setStatus(ctx, rest[0], rest[1], strings.Join(rest[2:], " "))
	case "stats":
		return c.stats(ctx)
	case "browse":
		return c.browse(ctx)
	case "export":
		return c.export(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseListFlags(args []string) (review.Filter, error) {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		status   = fs.String("status", "", "status name or number")
		search   = fs.String("search", "", "search term")
		from     = fs.String("from", "", "created on or after (YYYY-MM-DD)")
		to       = fs.String("to", "", "created on or before (YYYY-MM-DD)")
		page     = fs.Int("page", review.DefaultPage, "page number")
		pageSize = fs.Int("page-size", review.DefaultPageSize, "page size")
		asc      = fs.Bool("asc", false, "oldest first")
	)
	if err := fs.Parse(args); err != nil {
		return review.Filter{}, err
	}

	f := review.DefaultFilter()
	if *status != "" {
		s, err := submission.ParseStatus(*status)
		if err != nil {
			return review.Filter{}, err
		}
		f.Status = s
	}
	for _, d := range []struct {
		raw string
		dst *time.Time
	}{{*from, &f.FromDate}, {*to, &f.ToDate}} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse(review.DateLayout, d.raw)
		if err != nil {
			return review.Filter{}, fmt.Errorf("invalid date %q", d.raw)
		}
		*d.dst = t
	}
	f.Search = *search
	f.Page = *page
	f.PageSize = *pageSize
	f.SortDescending = !*asc
	return f.Normalize(), nil
}

func (c *console) list(ctx context.Context, args []string) error {
	f, err := parseListFlags(args)
	if err != nil {
		return err
	}
	view := review.NewListView(c.conn, nil, review.WithFilter(f))
	defer view.Close()
	page, err := view.Load(ctx)
	if err != nil {
		return err
	}
	c.printPage(page)
	return nil
}

func (c *console) printPage(page *review.Page) {
	if page.Empty() {
		fmt.Fprintln(c.out, "لا توجد طلبات مطابقة.")
		return
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREFERENCE\tNAME\tCREATED\tSTATUS")
	for _, item := range page.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.ReferenceCode, item.FormData.FullName,
			item.CreatedAt.Local().Format("2006-01-02 15:04"), item.Status.Text())
	}
	_ = w.Flush()
	totalPages := page.TotalPages
	if totalPages == 0 {
		totalPages = 1
	}
	fmt.Fprintf(c.out, "page %d/%d, %d total\n", page.Filter.Page, totalPages, page.TotalCount)
}

func (c *console) show(ctx context.Context, id string) error {
	view := review.NewDetailView(id, c.conn, nil, c.logger)
	d, err := view.Load(ctx)
	if errors.Is(err, review.ErrNotFound) {
		return fmt.Errorf("submission %s not found", id)
	}
	if err != nil {
		return err
	}
	c.printDetail(d)
	return nil
}

func (c *console) printDetail(d *submission.Detail) {
	fd := d.FormData
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Reference", d.ReferenceCode},
		{"Status", d.Status.Text()},
		{"Created", d.CreatedAt.Local().Format("2006-01-02 15:04")},
		{"Full name", fd.FullName},
		{"National ID", fd.NationalID},
		{"Date of birth", fd.DateOfBirth},
		{"Nationality", fd.Nationality},
		{"Marital status", submission.MaritalStatus(fd.MaritalStatus).Text()},
		{"Phone", fd.Phone},
		{"Email", fd.Email},
		{"Address", fd.Address},
		{"Qualification", strings.TrimSpace(fd.Qualification + " " + fd.Major + " " + fd.GraduationYear)},
		{"Applied before", yesNo(bool(fd.AppliedBefore), fd.AppliedBeforeWhen)},
		{"Relatives", yesNo(bool(fd.RelativesInCompany), fd.RelativesDetails)},
		{"Files", strconv.Itoa(len(d.Files))},
		{"Signatures", strconv.Itoa(len(d.Signatures))},
		{"Notes", d.AdminNotes},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s:\t%s\n", r[0], r[1])
	}
	for i, exp := range fd.WorkExperiences {
		if exp.IsBlank() {
			continue
		}
		fmt.Fprintf(w, "Experience %d:\t%s, %s, %s\n", i+1, exp.Company, exp.Position, exp.Duration)
	}
	_ = w.Flush()
}

func yesNo(b bool, detail string) string {
	if !b {
		return "لا"
	}
	return strings.TrimSpace("نعم " + detail)
}

func (c *console) setStatus(ctx context.Context, id, rawStatus, notes string) error {
	status, err := submission.ParseStatus(rawStatus)
	if err != nil {
		return fmt.Errorf("%w: %s", review.ErrInvalidStatus, rawStatus)
	}
	view := review.NewDetailView(id, c.conn, nil, c.logger)
	if _, err := view.Load(ctx); err != nil {
		return err
	}
	if err := view.StartEdit(); err != nil {
		return err
	}
	if notes == "" {
		notes = view.Draft().AdminNotes
	}
	view.SetDraft(status, notes)
	msg, err := view.Save(ctx)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "تم تحديث حالة الطلب بنجاح"
	}
	fmt.Fprintln(c.out, msg)
	return nil
}

func (c *console) stats(ctx context.Context) error {
	stats, err := review.LoadStats(ctx, c.conn, nil, c.now())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total:\t%d\n", stats.Total)
	fmt.Fprintf(w, "Today:\t%d\n", stats.Today)
	fmt.Fprintf(w, "Last 7 days:\t%d\n", stats.LastWeek)
	for _, sc := range stats.ByStatus {
		fmt.Fprintf(w, "%s:\t%d\n", sc.Status.Text(), sc.Count)
	}
	_ = w.Flush()
	if len(stats.Recent) > 0 {
		fmt.Fprintln(c.out, "Recent:")
		for _, item := range stats.Recent {
			fmt.Fprintf(c.out, "  %s  %s  %s\n", item.ReferenceCode, item.FormData.FullName, item.Status.Text())
		}
	}
	return nil
}

// browse reads commands line by line and reprints the list after every
// filter change. Search terms are debounced like typing in the web list.
func (c *console) browse(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes := make(chan review.Filter, 1)
	view := review.NewListView(c.conn, nil, review.WithOnChange(func(f review.Filter) {
		select {
		case changes <- f:
		default:
		}
	}))
	defer view.Close()

	render := func() {
		page, err := view.Load(ctx)
		if err != nil {
			fmt.Fprintln(c.out, "error:", err)
			return
		}
		c.printPage(page)
	}
	drain := func() {
		select {
		case <-changes:
			render()
		default:
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	render()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			render()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.browseCommand(ctx, view, line); quit {
				return nil
			}
			drain()
		}
	}
}

func (c *console) browseCommand(ctx context.Context, view *review.ListView, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	switch fields[0] {
	case "quit", "exit", "q":
		return true
	case "search":
		view.SetSearch(arg)
	case "status":
		if arg == "" || arg == "all" {
			view.SetStatus(submission.StatusUnknown)
			break
		}
		s, err := submission.ParseStatus(arg)
		if err != nil {
			fmt.Fprintln(c.out, "error:", err)
			break
		}
		view.SetStatus(s)
	case "from", "to":
		f := view.Filter()
		var t time.Time
		if arg != "" {
			parsed, err := time.Parse(review.DateLayout, arg)
			if err != nil {
				fmt.Fprintln(c.out, "error: invalid date", arg)
				break
			}
			t = parsed
		}
		if fields[0] == "from" {
			view.SetDateRange(t, f.ToDate)
		} else {
			view.SetDateRange(f.FromDate, t)
		}
	case "page":
		n, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintln(c.out, "error: invalid page", arg)
			break
		}
		view.SetPage(n)
	case "next":
		view.SetPage(view.Filter().Page + 1)
	case "prev":
		view.SetPage(view.Filter().Page - 1)
	case "show":
		if err := c.show(ctx, arg); err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
	default:
		fmt.Fprintln(c.out, "commands: search <term>, status <s|all>, from <date>, to <date>, page <n>, next, prev, show <id>, quit")
	}
	return false
}
