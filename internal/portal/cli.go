package portal

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"LIBRIS-backend/internal/platform/auth"
)

const defaultServer = "http://localhost:8080"

type cliOptions struct {
	server  string
	token   string
	timeout time.Duration
}

func (o *cliOptions) client() *Client {
	c := NewClient(o.server, &http.Client{Timeout: o.timeout})
	c.SetToken(o.token)
	return c
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// NewCommand は `libris portal ...` のサブコマンド群
func NewCommand() *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Use a LIBRIS server as a member or librarian",
		Long: `Client for the LIBRIS API.

Log in first and export the printed token:
  libris portal login --email you@example.com
  export LIBRIS_TOKEN=...`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("LIBRIS_SERVER", defaultServer), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("LIBRIS_TOKEN"), "bearer token from `portal login`")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "HTTP timeout")

	cmd.AddCommand(
		loginCmd(opts),
		booksCmd(opts),
		genresCmd(opts),
		requestCmd(opts),
		requestsCmd(opts),
		approveCmd(opts),
		rejectCmd(opts),
		statusCmd(opts),
		borrowsCmd(opts),
		returnCmd(opts),
		returnPendingCmd(opts),
		ackCmd(opts),
		overdueCmd(opts),
		historyCmd(opts),
	)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// readPassword はエコーなしで読む（端末でなければ1行読む）
func readPassword(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	var line string
	if _, err := fmt.Fscanln(in, &line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func loginCmd(opts *cliOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				p, err := readPassword(os.Stdin, cmd.ErrOrStderr())
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = p
			}
			c := opts.client()
			u, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return errors.New(Notice(err))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Logged in as %s (%s)\n", u.Name, u.Role)
			fmt.Fprintf(cmd.OutOrStdout(), "export LIBRIS_TOKEN=%s\n", c.Token())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func booksCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "books [query]",
		Short: "Search the catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := ""
			if len(args) == 1 {
				q = args[0]
			}
			list, err := opts.client().Books(cmd.Context(), q)
			if err != nil {
				return errors.New(Notice(err))
			}
			rows := make([][]string, 0, len(list.Items))
			for _, b := range list.Items {
				rows = append(rows, []string{
					strconv.FormatInt(b.ID, 10), b.Title, b.Author, b.Genre,
					fmt.Sprintf("%d/%d", b.CopiesAvailable, b.TotalCopies),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Title", "Author", "Genre", "Available"}, rows)
			return nil
		},
	}
}

func genresCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "Genres used in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := opts.client().Genres(cmd.Context())
			if err != nil {
				return errors.New(Notice(err))
			}
			for _, g := range list.Items {
				fmt.Fprintln(cmd.OutOrStdout(), g.Name)
			}
			return nil
		},
	}
}

func requestCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "request <book-id>",
		Short: "Ask to borrow a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			v := NewBookRequestView(opts.client(), id, printNotice(cmd.ErrOrStderr()))
			if err := v.Load(cmd.Context()); err != nil {
				return errors.New(Notice(err))
			}
			if !v.CanSubmit() {
				fmt.Fprintln(cmd.OutOrStdout(), "Already requested")
				return nil
			}
			if err := v.Submit(cmd.Context()); err != nil {
				return errSilent
			}
			return nil
		},
	}
}

func showQueue(w io.Writer, v *RequestQueueView) {
	rows := make([][]string, 0, len(v.Items))
	for _, r := range v.Items {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10), r.Book.Label(), r.User.Label(), fmtDate(r.RequestedAt),
		})
	}
	renderTable(w, []string{"Request", "Book", "Member", "Requested"}, rows)
}

func requestsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "requests",
		Short: "Pending borrow requests (librarian)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := NewRequestQueueView(opts.client(), printNotice(cmd.ErrOrStderr()))
			if err := v.Load(cmd.Context()); err != nil {
				return errors.New(Notice(err))
			}
			showQueue(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func approveCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a pending request (librarian)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			v := NewRequestQueueView(opts.client(), printNotice(cmd.ErrOrStderr()))
			if err := v.Approve(cmd.Context(), id); err != nil {
				return errSilent
			}
			showQueue(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func rejectCmd(opts *cliOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Reject a pending request with a reason (librarian)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			v := NewRequestQueueView(opts.client(), printNotice(cmd.ErrOrStderr()))
			if err := v.Reject(cmd.Context(), id, reason); err != nil {
				return errSilent
			}
			showQueue(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason shown to the member")
	return cmd
}

func statusCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Your borrow requests (member)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := NewStatusView(opts.client(), printNotice(cmd.ErrOrStderr()))
			if err := v.Load(cmd.Context()); err != nil {
				return errors.New(Notice(err))
			}
			rows := [][]string{}
			for _, r := range v.Rows() {
				rows = append(rows, []string{strconv.FormatInt(r.RequestID, 10), r.Title, r.Status, r.Reason, r.Requested})
			}
			renderTable(cmd.OutOrStdout(), []string{"Request", "Book", "Status", "Reason", "Requested"}, rows)
			return nil
		},
	}
}

func showReturns(w io.Writer, v *ReturnsView) {
	rows := make([][]string, 0, len(v.Items))
	for _, b := range v.Items {
		label, disabled := v.Action(b)
		if disabled {
			label += " (disabled)"
		}
		rows = append(rows, []string{
			strconv.FormatInt(b.BorrowID, 10), b.Book.Label(), fmtDate(b.BorrowedAt), fmtDate(b.ExpectedReturn), label,
		})
	}
	renderTable(w, []string{"Borrow", "Book", "Borrowed", "Due", "Action"}, rows)
}

func borrowsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "borrows",
		Short: "Books you have not returned yet (member)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := NewReturnsView(opts.client(), printNotice(cmd.ErrOrStderr()))
			if err := v.Load(cmd.Context()); err != nil {
				return errors.New(Notice(err))
			}
			showReturns(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func returnCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "return <borrow-id>",
		Short: "Tell the library you are returning a book (member)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			v := NewReturnsView(opts.client(), printNotice(cmd.ErrOrStderr()))
			if err := v.Load(cmd.Context()); err != nil {
				return errors.New(Notice(err))
			}
			if err := v.RequestReturn(cmd.Context(), id); err != nil {
				return errSilent
			}
			showReturns(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func showAckQueue(w io.Writer, v *ReturnAckView) {
	rows := make([][]string, 0, len(v.Items))
	for _, b := range v.Items {
		rows = append(rows, []string{
			strconv.FormatInt(b.BorrowID, 10), b.Book.Label(), b.User.Label(), fmtDate(b.ExpectedReturn),
		})
	}
	renderTable(w, []string{"Borrow", "Book", "Member", "Due"}, rows)
}

func returnPendingCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "return-pending",
		Short: "Returns waiting for acknowledgment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := NewReturnAckView(opts.client(), printNotice(cmd.ErrOrStderr()))
			if err := v.Load(cmd.Context()); err != nil {
				return errors.New(Notice(err))
			}
			showAckQueue(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func ackCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <borrow-id>",
		Short: "Acknowledge a returned book (librarian)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			v := NewReturnAckView(opts.client(), printNotice(cmd.ErrOrStderr()))
			if err := v.Load(cmd.Context()); err != nil {
				return errors.New(Notice(err))
			}
			if err := v.Acknowledge(cmd.Context(), id); err != nil {
				return errSilent
			}
			showAckQueue(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func overdueCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Overdue borrows and penalties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := opts.client()
			me, err := c.Profile(cmd.Context())
			if err != nil {
				return errors.New(Notice(err))
			}
			v := NewOverdueView(c, auth.IsStaff(me.Role), printNotice(cmd.ErrOrStderr()))
			if err := v.Load(cmd.Context()); err != nil {
				return errors.New(Notice(err))
			}
			headers := []string{"Borrow", "Book", "Due", "Overdue", "Penalty"}
			if v.Staff {
				headers = []string{"Borrow", "Member", "Book", "Due", "Overdue", "Penalty"}
			}
			rows := [][]string{}
			for _, r := range v.Rows() {
				row := []string{strconv.FormatInt(r.BorrowID, 10)}
				if v.Staff {
					row = append(row, r.Member)
				}
				row = append(row, r.Title, fmtDate(r.ExpectedReturn), r.Overdue, r.Penalty.StringFixed(2))
				rows = append(rows, row)
			}
			renderTable(cmd.OutOrStdout(), headers, rows)
			return nil
		},
	}
}

func historyCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Borrow history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := NewHistoryView(opts.client(), printNotice(cmd.ErrOrStderr()))
			if err := v.Load(cmd.Context()); err != nil {
				return errors.New(Notice(err))
			}
			rows := [][]string{}
			for _, r := range v.Rows() {
				rows = append(rows, []string{strconv.FormatInt(r.BorrowID, 10), r.Title, r.Member, r.Borrowed, r.State, r.Returned})
			}
			renderTable(cmd.OutOrStdout(), []string{"Borrow", "Book", "Member", "Borrowed", "State", "Returned"}, rows)
			return nil
		},
	}
}

// errSilent: 通知は表示済みなので終了コードだけ立てる
var errSilent = &silentError{}

type silentError struct{}

func (*silentError) Error() string { return "" }

// IsSilent は main がエラー表示を省くために使う
func IsSilent(err error) bool {
	var s *silentError
	return errors.As(err, &s)
}
