package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"LIBRIS-backend/internal/lifecycle"
	"LIBRIS-backend/internal/platform/auth"
	"LIBRIS-backend/internal/platform/config"
	"LIBRIS-backend/internal/platform/db"
)

const (
	recentBorrowLimit = 5
	popularLimit      = 3
	eventWindowDays   = 7
)

type Service struct {
	store   *Store
	lending config.LendingConfig
	log     *zap.Logger
	now     func() time.Time
}

func NewService(conn *db.Conn, lending config.LendingConfig, log *zap.Logger) *Service {
	return &Service{store: NewStore(conn), lending: lending, log: log, now: time.Now}
}

func (s *Service) clock() (now, startOfToday time.Time) {
	now = s.now().UTC().Truncate(time.Second)
	return now, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) LibStats(ctx context.Context) (LibStats, error) {
	var out LibStats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		_, out.TotalBooks, out.AvailableBooks, err = s.store.CopyTotals(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.TotalMembers, err = s.store.CountUsers(ctx, auth.RoleMember)
		return err
	})
	g.Go(func() (err error) {
		out.TotalLibrarians, err = s.store.CountUsers(ctx, auth.RoleLibrarian)
		return err
	})
	g.Go(func() (err error) {
		out.PendingBorrowCount, err = s.store.CountPendingRequests(ctx, 0)
		return err
	})
	g.Go(func() (err error) {
		out.PendingReturnCount, err = s.store.CountPendingReturns(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return LibStats{}, err
	}
	return out, nil
}

func (s *Service) AdminDashboard(ctx context.Context) (AdminDashboard, error) {
	_, today := s.clock()
	var out AdminDashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.NumBooks, out.TotalCopies, out.TotalCopiesAvailable, err = s.store.CopyTotals(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.NumMembers, err = s.store.CountUsers(ctx, auth.RoleMember)
		return err
	})
	g.Go(func() (err error) {
		out.NumLibrarians, err = s.store.CountUsers(ctx, auth.RoleLibrarian)
		return err
	})
	g.Go(func() (err error) {
		out.ActiveBorrows, err = s.store.CountOpenBorrows(ctx, 0)
		return err
	})
	g.Go(func() (err error) {
		out.OverdueBorrows, err = s.store.CountOverdue(ctx, 0, today)
		return err
	})
	if err := g.Wait(); err != nil {
		return AdminDashboard{}, err
	}
	return out, nil
}

func (s *Service) MemberOverview(ctx context.Context, userID int64) (MemberOverview, error) {
	_, today := s.clock()
	var out MemberOverview
	var recent []borrowRow
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.BorrowedCount, err = s.store.CountOpenBorrows(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		out.PendingRequests, err = s.store.CountPendingRequests(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		out.OverdueCount, err = s.store.CountOverdue(ctx, userID, today)
		return err
	})
	g.Go(func() (err error) {
		out.ReturnedCount, err = s.store.CountReturned(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.store.RecentBorrows(ctx, userID, recentBorrowLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return MemberOverview{}, err
	}

	out.RecentBorrows = make([]RecentBorrow, 0, len(recent))
	for _, r := range recent {
		var returnedAt *time.Time
		if r.ReturnedAt.Valid {
			returnedAt = &r.ReturnedAt.Time
		}
		out.RecentBorrows = append(out.RecentBorrows, RecentBorrow{
			BorrowID:   r.ID,
			Title:      r.Title.String,
			BorrowedAt: r.BorrowedAt,
			State:      string(lifecycle.StateOf(r.ReturnRequested, returnedAt)),
		})
	}
	return out, nil
}

var eventKinds = map[string]string{
	"added":   KindNew,
	"updated": KindUpdated,
	"removed": KindRemoved,
}

// MemberNotifications: 本の追加・更新・削除（直近7日）、返却期限が近い自分の貸出、人気の本。
// 延滞判定は expected_return だけを見る（borrowed_at からは計算しない）。
func (s *Service) MemberNotifications(ctx context.Context, userID int64) (Notifications, error) {
	now, today := s.clock()
	var (
		events  []bookEvent
		due     []borrowRow
		popular []popularBook
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		events, err = s.store.EventsSince(ctx, now.AddDate(0, 0, -eventWindowDays))
		return err
	})
	g.Go(func() (err error) {
		// 今日が期限のものから due_soon_days 日後が期限のものまで
		due, err = s.store.DueBetween(ctx, userID, today, today.AddDate(0, 0, s.lending.DueSoonDays+1))
		return err
	})
	g.Go(func() (err error) {
		popular, err = s.store.Popular(ctx, now.AddDate(0, 0, -s.lending.PopularWindowDays), popularLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Notifications{}, err
	}

	list := make([]Notification, 0, len(events)+len(due)+len(popular))
	for _, e := range events {
		kind, ok := eventKinds[e.Kind]
		if !ok {
			s.log.Warn("unknown book event kind", zap.String("kind", e.Kind))
			continue
		}
		list = append(list, Notification{Kind: kind, BookID: e.BookID, Message: eventMessage(kind, e.Title), CreatedAt: e.CreatedAt})
	}
	for _, b := range due {
		list = append(list, Notification{
			Kind:      KindDueSoon,
			BookID:    b.BookID,
			Message:   dueMessage(b.Title.String, b.ExpectedReturn, now),
			CreatedAt: b.ExpectedReturn,
		})
	}
	for _, p := range popular {
		list = append(list, Notification{
			Kind:      KindPopular,
			BookID:    p.BookID,
			Message:   fmt.Sprintf("Popular this month: %q (%d borrows)", p.Title, p.Count),
			CreatedAt: now,
		})
	}
	return Notifications{Notifications: list}, nil
}

func eventMessage(kind, title string) string {
	switch kind {
	case KindNew:
		return fmt.Sprintf("New book added: %q", title)
	case KindUpdated:
		return fmt.Sprintf("Book details updated: %q", title)
	default:
		return fmt.Sprintf("Book removed from the catalog: %q", title)
	}
}

func dueMessage(title string, due, now time.Time) string {
	if title == "" {
		title = "Unknown"
	}
	// 暦日で数えた残り日数（過ぎていれば 0）
	switch d := lifecycle.DaysOverdue(now, due); d {
	case 0:
		return fmt.Sprintf("%q is due today", title)
	case 1:
		return fmt.Sprintf("%q is due tomorrow", title)
	default:
		return fmt.Sprintf("%q is due in %d days", title, d)
	}
}
