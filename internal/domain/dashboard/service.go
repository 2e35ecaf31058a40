package dashboard

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Service computes admin statistics
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates dashboard service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Dashboard returns headline counts. Queries run concurrently.
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	now := s.now()
	today := startOfDay(now)

	var (
		users, transactions, todayTransactions int64
		recharges, pending, total, available   int64
		admins                                 map[string]int64
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.repo.CountUsers(ctx, time.Time{})
		return
	})
	g.Go(func() (err error) {
		admins, err = s.repo.CountAdmins(ctx)
		return
	})
	g.Go(func() (err error) {
		transactions, err = s.repo.CountTransactions(ctx, time.Time{})
		return
	})
	g.Go(func() (err error) {
		todayTransactions, err = s.repo.CountTransactions(ctx, today)
		return
	})
	g.Go(func() (err error) {
		recharges, err = s.repo.CountRecharges(ctx, time.Time{}, "")
		return
	})
	g.Go(func() (err error) {
		pending, err = s.repo.CountRecharges(ctx, time.Time{}, "pending")
		return
	})
	g.Go(func() (err error) {
		total, available, err = s.repo.CreditTotals(ctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var adminTotal int64
	for _, n := range admins {
		adminTotal += n
	}

	return &DashboardStats{
		Users:        Counter{Total: users, Label: "Total users"},
		Admins:       Counter{Total: adminTotal, Label: "Administrators"},
		Transactions: Counter{Total: transactions, Today: &todayTransactions, Label: "Transactions"},
		Recharges:    Counter{Total: recharges, Pending: &pending, Label: "Recharges"},
		Credits:      CreditCounter{Total: total, Available: available, Label: "Credits"},
		GeneratedAt:  now.UTC(),
	}, nil
}

// System returns overview counts and trends for period at granularity.
func (s *Service) System(ctx context.Context, period Period, granularity Granularity) (*SystemStats, error) {
	now := s.now().UTC()
	start := now.Add(-period.Duration())
	today := startOfDay(now)

	var (
		overview       Overview
		admins         map[string]int64
		txRows, rcRows []BucketRow
		firstUser      *time.Time
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		overview.TotalUsers, err = s.repo.CountUsers(ctx, time.Time{})
		return
	})
	g.Go(func() (err error) {
		overview.NewUsersPeriod, err = s.repo.CountUsers(ctx, start)
		return
	})
	g.Go(func() (err error) {
		overview.TodayUsers, err = s.repo.CountUsers(ctx, today)
		return
	})
	g.Go(func() (err error) {
		overview.TotalTransactions, err = s.repo.CountTransactions(ctx, start)
		return
	})
	g.Go(func() (err error) {
		overview.TodayTransactions, err = s.repo.CountTransactions(ctx, today)
		return
	})
	g.Go(func() (err error) {
		overview.TotalRecharges, err = s.repo.CountRecharges(ctx, start, "")
		return
	})
	g.Go(func() (err error) {
		overview.TodayRecharges, err = s.repo.CountRecharges(ctx, today, "")
		return
	})
	g.Go(func() (err error) {
		overview.TotalCredits, overview.TotalAvailableCredits, err = s.repo.CreditTotals(ctx)
		return
	})
	g.Go(func() (err error) {
		txRows, err = s.repo.TransactionTrend(ctx, start, granularity)
		return
	})
	g.Go(func() (err error) {
		rcRows, err = s.repo.RechargeTrend(ctx, start, granularity)
		return
	})
	g.Go(func() (err error) {
		admins, err = s.repo.CountAdmins(ctx)
		return
	})
	g.Go(func() (err error) {
		firstUser, err = s.repo.FirstUserAt(ctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	adminCounts := AdminCounts{Admin: admins["admin"], SuperAdmin: admins["super_admin"]}
	adminCounts.Total = adminCounts.Admin + adminCounts.SuperAdmin

	var uptime *Uptime
	if firstUser != nil {
		age := now.Sub(*firstUser)
		uptime = &Uptime{Days: int(age / (24 * time.Hour)), Hours: int(age%(24*time.Hour)) / int(time.Hour)}
	}

	return &SystemStats{
		Overview: overview,
		Period: PeriodInfo{
			Label:       period.Label(),
			StartDate:   start,
			EndDate:     now,
			Granularity: granularity,
		},
		Trends: Trends{
			Transactions: transactionBuckets(txRows, granularity),
			Recharges:    rechargeBuckets(rcRows, granularity),
		},
		Admins: adminCounts,
		System: SystemInfo{Uptime: uptime, LastUpdated: now},
	}, nil
}

// fold groups rows by bucket key in chronological order.
func fold(rows []BucketRow, g Granularity, visit func(key string, row BucketRow)) []string {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Bucket.Before(rows[j].Bucket) })
	var keys []string
	seen := make(map[string]bool)
	for _, row := range rows {
		key := g.Key(row.Bucket)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
		visit(key, row)
	}
	return keys
}

func transactionBuckets(rows []BucketRow, g Granularity) []TransactionBucket {
	byKey := make(map[string]*TransactionBucket)
	keys := fold(rows, g, func(key string, row BucketRow) {
		b, ok := byKey[key]
		if !ok {
			b = &TransactionBucket{Date: key, Types: make(map[string]KindTotal)}
			byKey[key] = b
		}
		b.Count += row.Count
		b.TotalAmount += row.Amount
		t := b.Types[row.Kind]
		t.Count += row.Count
		t.Amount += row.Amount
		b.Types[row.Kind] = t
	})

	out := make([]TransactionBucket, 0, len(keys))
	for _, key := range keys {
		out = append(out, *byKey[key])
	}
	return out
}

func rechargeBuckets(rows []BucketRow, g Granularity) []RechargeBucket {
	byKey := make(map[string]*RechargeBucket)
	keys := fold(rows, g, func(key string, row BucketRow) {
		b, ok := byKey[key]
		if !ok {
			b = &RechargeBucket{Date: key, StatusBreakdown: make(map[string]KindTotal)}
			byKey[key] = b
		}
		b.Count += row.Count
		b.TotalAmount += row.Amount
		t := b.StatusBreakdown[row.Kind]
		t.Count += row.Count
		t.Amount += row.Amount
		b.StatusBreakdown[row.Kind] = t
	})

	out := make([]RechargeBucket, 0, len(keys))
	for _, key := range keys {
		out = append(out, *byKey[key])
	}
	return out
}
