package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 1日あたりの延滞金（通貨単位）
var DefaultPenaltyRate = decimal.NewFromInt(10)

var ErrBlankReason = errors.New("rejection reason is required")

const (
	ReturnActionRequest   = "Request Return"
	ReturnActionRequested = "Return Requested"

	noReasonText = "No reason provided"
)

func ExpectedReturn(borrowedAt time.Time, overdueDays int) time.Time {
	return borrowedAt.AddDate(0, 0, overdueDays)
}

// DaysOverdue は UTC の暦日差。期限当日以前は 0。
func DaysOverdue(expectedReturn, now time.Time) int {
	d := calendarDays(expectedReturn, now)
	if d < 0 {
		return 0
	}
	return d
}

func Penalty(daysOverdue int, rate decimal.Decimal) decimal.Decimal {
	if daysOverdue <= 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(daysOverdue)))
}

// DaysAgo: 0→"Today", 1→"Yesterday", n→"n days ago"
func DaysAgo(t, now time.Time) string {
	switch d := calendarDays(t, now); {
	case d <= 0:
		return "Today"
	case d == 1:
		return "Yesterday"
	default:
		return fmt.Sprintf("%d days ago", d)
	}
}

func DaysAgoLower(t, now time.Time) string {
	s := DaysAgo(t, now)
	if s == "Today" || s == "Yesterday" {
		return strings.ToLower(s)
	}
	return s
}

func OverdueText(days int) string {
	if days == 1 {
		return "1 day overdue"
	}
	return fmt.Sprintf("%d days overdue", days)
}

func ReturnActionLabel(returnRequested bool) string {
	if returnRequested {
		return ReturnActionRequested
	}
	return ReturnActionRequest
}

func ValidateRejectReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrBlankReason
	}
	return nil
}

// ReasonText は却下理由の表示用。却下以外は空文字。
func ReasonText(status RequestStatus, reason string) string {
	if status != StatusRejected {
		return ""
	}
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return noReasonText
}

func calendarDays(from, to time.Time) int {
	f := truncateDay(from)
	t := truncateDay(to)
	return int(t.Sub(f).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
