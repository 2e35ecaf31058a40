package dashboard

import "time"

// Counter is a labelled total shown on the dashboard.
type Counter struct {
	Total   int64  `json:"total"`
	Today   *int64 `json:"today,omitempty"`
	Pending *int64 `json:"pending,omitempty"`
	Label   string `json:"label"`
}

// CreditCounter sums balances across all users.
type CreditCounter struct {
	Total     int64  `json:"total"`
	Available int64  `json:"available"`
	Label     string `json:"label"`
}

// DashboardStats answers admin-get-dashboard-stats.
type DashboardStats struct {
	Users        Counter       `json:"users"`
	Admins       Counter       `json:"admins"`
	Transactions Counter       `json:"transactions"`
	Recharges    Counter       `json:"recharges"`
	Credits      CreditCounter `json:"credits"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// Period is a look-back window for system stats.
type Period string

const (
	Period7d  Period = "7d"
	Period30d Period = "30d"
	Period90d Period = "90d"
	Period1y  Period = "1y"
)

// ParsePeriod falls back to 30d for unknown input.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case Period7d, Period30d, Period90d, Period1y:
		return Period(s)
	default:
		return Period30d
	}
}

// Duration of the window.
func (p Period) Duration() time.Duration {
	const day = 24 * time.Hour
	switch p {
	case Period7d:
		return 7 * day
	case Period90d:
		return 90 * day
	case Period1y:
		return 365 * day
	default:
		return 30 * day
	}
}

// Label is the human name of the window.
func (p Period) Label() string {
	switch p {
	case Period7d:
		return "Last 7 days"
	case Period90d:
		return "Last 90 days"
	case Period1y:
		return "Last year"
	default:
		return "Last 30 days"
	}
}

// Granularity is the trend bucket size. Values match Postgres date_trunc units.
type Granularity string

const (
	Hour  Granularity = "hour"
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity falls back to day for unknown input.
func ParseGranularity(s string) Granularity {
	switch Granularity(s) {
	case Hour, Day, Week, Month:
		return Granularity(s)
	default:
		return Day
	}
}

// Key formats a bucket start for JSON output.
func (g Granularity) Key(t time.Time) string {
	if g == Hour {
		return t.UTC().Format("2006-01-02T15:00:00")
	}
	return t.UTC().Format("2006-01-02")
}

// BucketRow is one grouped row from a trend query.
type BucketRow struct {
	Bucket time.Time `db:"bucket"`
	Kind   string    `db:"kind"`
	Count  int64     `db:"count"`
	Amount int64     `db:"amount"`
}

// KindTotal is a count and amount for one transaction type or recharge status.
type KindTotal struct {
	Count  int64 `json:"count"`
	Amount int64 `json:"amount"`
}

// TransactionBucket is one point of the transaction trend.
type TransactionBucket struct {
	Date        string               `json:"date"`
	Count       int64                `json:"count"`
	TotalAmount int64                `json:"total_amount"`
	Types       map[string]KindTotal `json:"types"`
}

// RechargeBucket is one point of the recharge trend.
type RechargeBucket struct {
	Date            string               `json:"date"`
	Count           int64                `json:"count"`
	TotalAmount     int64                `json:"total_amount"`
	StatusBreakdown map[string]KindTotal `json:"status_breakdown"`
}

// Overview holds headline counts for system stats.
type Overview struct {
	TotalUsers            int64 `json:"total_users"`
	NewUsersPeriod        int64 `json:"new_users_period"`
	TotalTransactions     int64 `json:"total_transactions"`
	TotalRecharges        int64 `json:"total_recharges"`
	TotalCredits          int64 `json:"total_credits"`
	TotalAvailableCredits int64 `json:"total_available_credits"`
	TodayUsers            int64 `json:"today_users"`
	TodayTransactions     int64 `json:"today_transactions"`
	TodayRecharges        int64 `json:"today_recharges"`
}

// PeriodInfo echoes the evaluated window.
type PeriodInfo struct {
	Label       string      `json:"label"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	Granularity Granularity `json:"granularity"`
}

// Trends groups the time series.
type Trends struct {
	Transactions []TransactionBucket `json:"transactions"`
	Recharges    []RechargeBucket    `json:"recharges"`
}

// AdminCounts breaks admins down by role.
type AdminCounts struct {
	Total      int64 `json:"total"`
	Admin      int64 `json:"admin"`
	SuperAdmin int64 `json:"super_admin"`
}

// Uptime is the age of the installation, measured from the first user.
type Uptime struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// SystemInfo carries uptime and generation time.
type SystemInfo struct {
	Uptime      *Uptime   `json:"uptime"`
	LastUpdated time.Time `json:"last_updated"`
}

// SystemStats answers admin-get-system-stats.
type SystemStats struct {
	Overview Overview    `json:"overview"`
	Period   PeriodInfo  `json:"period"`
	Trends   Trends      `json:"trends"`
	Admins   AdminCounts `json:"admins"`
	System   SystemInfo  `json:"system"`
}
