package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	apperrors "taskflow/internal/errors"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// Period selects the analytics window.
type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodAll     Period = "all"
)

const (
	day            = 24 * time.Hour
	streakLookback = 365
	maxSeriesDays  = 92
	uncategorized  = "Uncategorized"
)

// ParsePeriod validates p; an empty value means week.
func ParsePeriod(p string) (Period, error) {
	switch Period(p) {
	case "":
		return PeriodWeek, nil
	case PeriodWeek, PeriodMonth, PeriodQuarter, PeriodAll:
		return Period(p), nil
	default:
		return "", apperrors.ErrInvalidPeriod
	}
}

// DateRange is the half-open window [Start, End] an analytics result covers.
type DateRange struct {
	Period Period    `json:"period"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Overview holds the core task counts of a period.
type Overview struct {
	DateRange
	TotalTasks      int `json:"total_tasks"`
	CompletedTasks  int `json:"completed_tasks"`
	PendingTasks    int `json:"pending_tasks"`
	InProgressTasks int `json:"in_progress_tasks"`
	CancelledTasks  int `json:"cancelled_tasks"`
	OverdueTasks    int `json:"overdue_tasks"`
	// CompletionRate is a percentage.
	CompletionRate float64 `json:"completion_rate"`
	// AverageCompletionTime is in days.
	AverageCompletionTime float64 `json:"average_completion_time"`
}

// Productivity is the weighted 0-100 score and its components.
type Productivity struct {
	Score            float64 `json:"score"`
	CompletionRate   float64 `json:"completion_rate"`
	SpeedScore       float64 `json:"speed_score"`
	VolumeScore      float64 `json:"volume_score"`
	OverdueScore     float64 `json:"overdue_score"`
	ConsistencyScore float64 `json:"consistency_score"`
	FocusScore       float64 `json:"focus_score"`
}

// DailyPoint is one day of the completion series.
type DailyPoint struct {
	Date      string `json:"date"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// Trends compares recent completions against earlier ones.
type Trends struct {
	WeeklyTrend   float64      `json:"weekly_trend"`
	VelocityTrend float64      `json:"velocity_trend"`
	Daily         []DailyPoint `json:"daily"`
}

// CategoryStats is one row of the category breakdown.
type CategoryStats struct {
	CategoryID            *uint   `json:"category_id"`
	Name                  string  `json:"name"`
	Color                 string  `json:"color"`
	TotalTasks            int     `json:"total_tasks"`
	CompletedTasks        int     `json:"completed_tasks"`
	CompletionRate        float64 `json:"completion_rate"`
	AverageCompletionTime float64 `json:"average_completion_time"`
	ProductivityIndex     float64 `json:"productivity_index"`
}

// WeekdayStats buckets tasks by day of week.
type WeekdayStats struct {
	Day          string  `json:"day"`
	Created      int     `json:"created"`
	Completed    int     `json:"completed"`
	Productivity float64 `json:"productivity"`
}

// HourStats buckets tasks by hour of day.
type HourStats struct {
	Hour      int     `json:"hour"`
	Created   int     `json:"created"`
	Completed int     `json:"completed"`
	Ratio     float64 `json:"ratio"`
}

// Patterns groups the weekly and hourly distributions.
type Patterns struct {
	Weekly []WeekdayStats `json:"weekly"`
	Hourly []HourStats    `json:"hourly"`
}

// Streak counts consecutive days with at least one completed task.
type Streak struct {
	Current       int        `json:"current"`
	Longest       int        `json:"longest"`
	LastCompleted *time.Time `json:"last_completed,omitempty"`
}

// Insight is a recommendation derived from the stats.
type Insight struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Impact  string `json:"impact"`
}

// Dashboard bundles the stats shown on the landing page.
type Dashboard struct {
	Overview     *Overview     `json:"overview"`
	Productivity *Productivity `json:"productivity"`
	Trends       *Trends       `json:"trends"`
	Streak       *Streak       `json:"streak"`
}

// AnalyticsService computes derived statistics from a user's task history.
type AnalyticsService interface {
	Dashboard(ctx context.Context, requester *model.User, period string) (*Dashboard, error)
	Overview(ctx context.Context, requester *model.User, period string) (*Overview, error)
	Productivity(ctx context.Context, requester *model.User, period string) (*Productivity, error)
	Trends(ctx context.Context, requester *model.User, period string) (*Trends, error)
	Categories(ctx context.Context, requester *model.User, period string) ([]CategoryStats, error)
	Patterns(ctx context.Context, requester *model.User, period string) (*Patterns, error)
	Streak(ctx context.Context, requester *model.User) (*Streak, error)
	Insights(ctx context.Context, requester *model.User, period string) ([]Insight, error)
}

type analyticsService struct {
	tasks repository.TaskRepository
	loc   *time.Location
	now   func() time.Time
}

// NewAnalyticsService creates the analytics aggregator. Calendar days are
// counted in loc.
func NewAnalyticsService(tasks repository.TaskRepository, loc *time.Location) AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &analyticsService{tasks: tasks, loc: loc, now: utcNow}
}

// snapshot is everything one request needs, loaded once.
type snapshot struct {
	rng     DateRange
	now     time.Time
	inRange []model.Task
	// recent holds completions of the last 14 days for the weekly trend.
	recent []model.Task
}

func (s *analyticsService) load(ctx context.Context, requester *model.User, period string, advanced bool) (*snapshot, error) {
	perms := permissionsOf(requester)
	if !perms.CanViewAnalytics || (advanced && !perms.CanViewAdvancedAnalytics) {
		return nil, apperrors.ErrPermissionDenied
	}
	p, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rng := resolveRange(p, now, requester.CreatedAt, s.loc)
	since := rng.Start
	if twoWeeks := now.Add(-14 * day); twoWeeks.Before(since) {
		since = twoWeeks
	}
	tasks, err := s.tasks.ListForUserSince(ctx, requester.ID, since)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	snap := &snapshot{rng: rng, now: now}
	for _, t := range tasks {
		if !t.CreatedAt.Before(rng.Start) {
			snap.inRange = append(snap.inRange, t)
		}
		if t.Status == model.TaskStatusCompleted && !t.FinishedAt().Before(now.Add(-14*day)) {
			snap.recent = append(snap.recent, t)
		}
	}
	return snap, nil
}

func (s *analyticsService) Overview(ctx context.Context, requester *model.User, period string) (*Overview, error) {
	snap, err := s.load(ctx, requester, period, false)
	if err != nil {
		return nil, err
	}
	return computeOverview(snap.rng, snap.inRange), nil
}

func (s *analyticsService) Productivity(ctx context.Context, requester *model.User, period string) (*Productivity, error) {
	snap, err := s.load(ctx, requester, period, false)
	if err != nil {
		return nil, err
	}
	return computeProductivity(computeOverview(snap.rng, snap.inRange), snap.inRange, s.loc), nil
}

func (s *analyticsService) Trends(ctx context.Context, requester *model.User, period string) (*Trends, error) {
	snap, err := s.load(ctx, requester, period, false)
	if err != nil {
		return nil, err
	}
	return computeTrends(snap, s.loc), nil
}

func (s *analyticsService) Categories(ctx context.Context, requester *model.User, period string) ([]CategoryStats, error) {
	snap, err := s.load(ctx, requester, period, true)
	if err != nil {
		return nil, err
	}
	return categoryBreakdown(snap.inRange), nil
}

func (s *analyticsService) Patterns(ctx context.Context, requester *model.User, period string) (*Patterns, error) {
	snap, err := s.load(ctx, requester, period, true)
	if err != nil {
		return nil, err
	}
	return &Patterns{
		Weekly: weeklyPattern(snap.inRange, s.loc),
		Hourly: hourlyDistribution(snap.inRange, s.loc),
	}, nil
}

func (s *analyticsService) Streak(ctx context.Context, requester *model.User) (*Streak, error) {
	if !permissionsOf(requester).CanViewAnalytics {
		return nil, apperrors.ErrPermissionDenied
	}
	return s.streak(ctx, requester.ID, s.now())
}

func (s *analyticsService) streak(ctx context.Context, userID uint, now time.Time) (*Streak, error) {
	completed, err := s.tasks.ListCompletedSince(ctx, userID, now.Add(-streakLookback*day))
	if err != nil {
		return nil, fmt.Errorf("load completed tasks: %w", err)
	}
	return computeStreak(completed, now, s.loc), nil
}

func (s *analyticsService) Insights(ctx context.Context, requester *model.User, period string) ([]Insight, error) {
	snap, err := s.load(ctx, requester, period, true)
	if err != nil {
		return nil, err
	}
	streak, err := s.streak(ctx, requester.ID, snap.now)
	if err != nil {
		return nil, err
	}
	overview := computeOverview(snap.rng, snap.inRange)
	return generateInsights(insightInput{
		overview:     overview,
		productivity: computeProductivity(overview, snap.inRange, s.loc),
		trends:       computeTrends(snap, s.loc),
		streak:       streak,
	}), nil
}

func (s *analyticsService) Dashboard(ctx context.Context, requester *model.User, period string) (*Dashboard, error) {
	snap, err := s.load(ctx, requester, period, false)
	if err != nil {
		return nil, err
	}
	streak, err := s.streak(ctx, requester.ID, snap.now)
	if err != nil {
		return nil, err
	}
	overview := computeOverview(snap.rng, snap.inRange)
	return &Dashboard{
		Overview:     overview,
		Productivity: computeProductivity(overview, snap.inRange, s.loc),
		Trends:       computeTrends(snap, s.loc),
		Streak:       streak,
	}, nil
}

// resolveRange maps a period to its window ending at now.
func resolveRange(p Period, now, joined time.Time, loc *time.Location) DateRange {
	local := now.In(loc)
	var start time.Time
	switch p {
	case PeriodMonth:
		start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	case PeriodQuarter:
		first := time.Month((int(local.Month())-1)/3*3 + 1)
		start = time.Date(local.Year(), first, 1, 0, 0, 0, 0, loc)
	case PeriodAll:
		start = joined
		if start.IsZero() || start.After(now) {
			start = now.Add(-streakLookback * day)
		}
	default:
		p = PeriodWeek
		start = now.Add(-7 * day)
	}
	return DateRange{Period: p, Start: start.UTC(), End: now}
}

func computeOverview(rng DateRange, tasks []model.Task) *Overview {
	o := &Overview{DateRange: rng, TotalTasks: len(tasks)}
	var completionDays []float64
	for _, t := range tasks {
		switch t.Status {
		case model.TaskStatusCompleted:
			o.CompletedTasks++
			completionDays = append(completionDays, completionDuration(t))
		case model.TaskStatusPending:
			o.PendingTasks++
		case model.TaskStatusInProgress:
			o.InProgressTasks++
		case model.TaskStatusCancelled:
			o.CancelledTasks++
		}
		if t.IsOverdue {
			o.OverdueTasks++
		}
	}
	o.CompletionRate = round2(percent(o.CompletedTasks, o.TotalTasks))
	o.AverageCompletionTime = round2(mean(completionDays))
	return o
}

// computeProductivity weighs completion rate 40%, speed 20%, volume 15%,
// overdue 10%, consistency 10% and focus 5%.
func computeProductivity(o *Overview, tasks []model.Task, loc *time.Location) *Productivity {
	p := &Productivity{
		CompletionRate:   o.CompletionRate,
		SpeedScore:       clamp(100-o.AverageCompletionTime*10, 0, 100),
		VolumeScore:      math.Min(float64(o.TotalTasks)*5, 100),
		OverdueScore:     clamp(100-float64(o.OverdueTasks)*10, 0, 100),
		ConsistencyScore: consistencyScore(tasks, o.DateRange, loc),
		FocusScore:       focusScore(tasks),
	}
	score := 0.4*p.CompletionRate +
		0.2*p.SpeedScore +
		0.15*p.VolumeScore +
		0.1*p.OverdueScore +
		0.1*p.ConsistencyScore +
		0.05*p.FocusScore
	p.Score = round2(clamp(score, 0, 100))
	p.SpeedScore = round2(p.SpeedScore)
	p.ConsistencyScore = round2(p.ConsistencyScore)
	return p
}

// consistencyScore is the share of days in the range on which a task was created.
func consistencyScore(tasks []model.Task, rng DateRange, loc *time.Location) float64 {
	days := int(math.Ceil(rng.End.Sub(rng.Start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	active := make(map[string]struct{})
	for _, t := range tasks {
		active[dayKey(t.CreatedAt, loc)] = struct{}{}
	}
	return clamp(percent(len(active), days), 0, 100)
}

// focusScore drops by 20 for every distinct category beyond the first.
func focusScore(tasks []model.Task) float64 {
	categories := make(map[uint]struct{})
	for _, t := range tasks {
		if t.CategoryID != nil {
			categories[*t.CategoryID] = struct{}{}
		}
	}
	if len(categories) == 0 {
		return 100
	}
	return clamp(100-20*float64(len(categories)-1), 0, 100)
}

func computeTrends(snap *snapshot, loc *time.Location) *Trends {
	weekAgo := snap.now.Add(-7 * day)
	var current, prior int
	for _, t := range snap.recent {
		if t.FinishedAt().Before(weekAgo) {
			prior++
		} else {
			current++
		}
	}

	mid := snap.rng.Start.Add(snap.rng.End.Sub(snap.rng.Start) / 2)
	var firstHalf, secondHalf int
	for _, t := range snap.inRange {
		if t.Status != model.TaskStatusCompleted {
			continue
		}
		if t.FinishedAt().Before(mid) {
			firstHalf++
		} else {
			secondHalf++
		}
	}

	return &Trends{
		WeeklyTrend:   round2(percentChange(prior, current)),
		VelocityTrend: round2(percentChange(firstHalf, secondHalf)),
		Daily:         dailySeries(snap.inRange, snap.rng, loc),
	}
}

// percentChange is the change from prior to current in percent; growth from
// nothing counts as 100.
func percentChange(prior, current int) float64 {
	switch {
	case prior == 0 && current > 0:
		return 100
	case prior == 0:
		return 0
	default:
		return float64(current-prior) / float64(prior) * 100
	}
}

// dailySeries covers at most the last maxSeriesDays days of the range.
func dailySeries(tasks []model.Task, rng DateRange, loc *time.Location) []DailyPoint {
	end := rng.End.In(loc)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	start := rng.Start.In(loc)
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	if limit := last.AddDate(0, 0, -(maxSeriesDays - 1)); first.Before(limit) {
		first = limit
	}

	index := make(map[string]int)
	var points []DailyPoint
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		index[key] = len(points)
		points = append(points, DailyPoint{Date: key})
	}
	for _, t := range tasks {
		if i, ok := index[dayKey(t.CreatedAt, loc)]; ok {
			points[i].Created++
		}
		if t.Status == model.TaskStatusCompleted {
			if i, ok := index[dayKey(t.FinishedAt(), loc)]; ok {
				points[i].Completed++
			}
		}
	}
	return points
}

// categoryBreakdown ranks categories by productivity index:
// completion rate 50%, volume relative to the busiest category 30%, speed 20%.
func categoryBreakdown(tasks []model.Task) []CategoryStats {
	type bucket struct {
		stats CategoryStats
		days  []float64
	}
	buckets := make(map[string]*bucket)
	var order []string
	for _, t := range tasks {
		key, stats := uncategorized, CategoryStats{Name: uncategorized, Color: model.DefaultCategoryColor}
		if t.CategoryID != nil {
			key = fmt.Sprintf("id:%d", *t.CategoryID)
			stats = CategoryStats{CategoryID: t.CategoryID, Name: fmt.Sprintf("Category %d", *t.CategoryID), Color: model.DefaultCategoryColor}
			if t.Category != nil {
				stats.Name, stats.Color = t.Category.Name, t.Category.Color
			}
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{stats: stats}
			buckets[key] = b
			order = append(order, key)
		}
		b.stats.TotalTasks++
		if t.Status == model.TaskStatusCompleted {
			b.stats.CompletedTasks++
			b.days = append(b.days, completionDuration(t))
		}
	}

	busiest := 0
	for _, b := range buckets {
		if b.stats.TotalTasks > busiest {
			busiest = b.stats.TotalTasks
		}
	}

	result := make([]CategoryStats, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		rate := percent(b.stats.CompletedTasks, b.stats.TotalTasks)
		avg := mean(b.days)
		volume := percent(b.stats.TotalTasks, busiest)
		speed := clamp(100-avg*10, 0, 100)
		b.stats.CompletionRate = round2(rate)
		b.stats.AverageCompletionTime = round2(avg)
		b.stats.ProductivityIndex = round2(rate*0.5 + volume*0.3 + speed*0.2)
		result = append(result, b.stats)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ProductivityIndex > result[j].ProductivityIndex
	})
	return result
}

func weeklyPattern(tasks []model.Task, loc *time.Location) []WeekdayStats {
	pattern := make([]WeekdayStats, 7)
	for d := range pattern {
		pattern[d].Day = time.Weekday(d).String()
	}
	for _, t := range tasks {
		pattern[t.CreatedAt.In(loc).Weekday()].Created++
		if t.Status == model.TaskStatusCompleted {
			pattern[t.FinishedAt().In(loc).Weekday()].Completed++
		}
	}
	for d := range pattern {
		pattern[d].Productivity = round2(percent(pattern[d].Completed, pattern[d].Created))
	}
	return pattern
}

func hourlyDistribution(tasks []model.Task, loc *time.Location) []HourStats {
	hours := make([]HourStats, 24)
	for h := range hours {
		hours[h].Hour = h
	}
	for _, t := range tasks {
		hours[t.CreatedAt.In(loc).Hour()].Created++
		if t.Status == model.TaskStatusCompleted {
			hours[t.FinishedAt().In(loc).Hour()].Completed++
		}
	}
	for h := range hours {
		hours[h].Ratio = round2(percent(hours[h].Completed, hours[h].Created))
	}
	return hours
}

// computeStreak walks back from today; a day without completions ends the
// current streak, so a user who has not completed anything today has none.
func computeStreak(completed []model.Task, now time.Time, loc *time.Location) *Streak {
	days := make(map[string]struct{})
	var last *time.Time
	for _, t := range completed {
		finished := t.FinishedAt()
		days[dayKey(finished, loc)] = struct{}{}
		if last == nil || finished.After(*last) {
			f := finished
			last = &f
		}
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	streak := &Streak{LastCompleted: last}

	for d := today; ; d = d.AddDate(0, 0, -1) {
		if _, ok := days[d.Format(time.DateOnly)]; !ok {
			break
		}
		streak.Current++
	}

	run := 0
	for i := streakLookback - 1; i >= 0; i-- {
		if _, ok := days[today.AddDate(0, 0, -i).Format(time.DateOnly)]; ok {
			run++
			if run > streak.Longest {
				streak.Longest = run
			}
		} else {
			run = 0
		}
	}
	return streak
}

type insightInput struct {
	overview     *Overview
	productivity *Productivity
	trends       *Trends
	streak       *Streak
}

var insightRules = []struct {
	applies func(in insightInput) bool
	build   func(in insightInput) Insight
}{
	{
		applies: func(in insightInput) bool { return in.overview.TotalTasks > 0 && in.overview.CompletionRate >= 90 },
		build: func(in insightInput) Insight {
			return Insight{"achievement", "Excellent completion rate",
				fmt.Sprintf("You completed %.0f%% of your tasks. Keep it up.", in.overview.CompletionRate), "high"}
		},
	},
	{
		applies: func(in insightInput) bool { return in.overview.TotalTasks > 0 && in.overview.CompletionRate < 50 },
		build: func(in insightInput) Insight {
			return Insight{"improvement", "Low completion rate",
				fmt.Sprintf("Only %.0f%% of your tasks are done. Try breaking large tasks into smaller ones.", in.overview.CompletionRate), "high"}
		},
	},
	{
		applies: func(in insightInput) bool { return in.productivity.ConsistencyScore < 50 },
		build: func(in insightInput) Insight {
			return Insight{"habit", "Work more consistently",
				"You created tasks on fewer than half of the days in this period. A short daily planning routine helps.", "medium"}
		},
	},
	{
		applies: func(in insightInput) bool { return in.overview.OverdueTasks > 0 },
		build: func(in insightInput) Insight {
			return Insight{"warning", "Overdue tasks",
				fmt.Sprintf("You have %d overdue task(s). Reschedule or finish them first.", in.overview.OverdueTasks), "high"}
		},
	},
	{
		applies: func(in insightInput) bool { return in.streak.Current >= 7 },
		build: func(in insightInput) Insight {
			return Insight{"achievement", "Streak on fire",
				fmt.Sprintf("You completed tasks %d days in a row.", in.streak.Current), "medium"}
		},
	},
	{
		applies: func(in insightInput) bool { return in.productivity.FocusScore < 60 },
		build: func(in insightInput) Insight {
			return Insight{"focus", "Spread across many categories",
				"Your tasks span many categories. Focusing on fewer areas at a time can speed things up.", "low"}
		},
	},
	{
		applies: func(in insightInput) bool { return in.overview.AverageCompletionTime > 7 },
		build: func(in insightInput) Insight {
			return Insight{"speed", "Tasks take a while",
				fmt.Sprintf("Tasks take %.1f days on average to complete. Set due dates to keep them moving.", in.overview.AverageCompletionTime), "medium"}
		},
	},
	{
		applies: func(in insightInput) bool { return in.trends.WeeklyTrend <= -20 },
		build: func(in insightInput) Insight {
			return Insight{"trend", "Fewer completions this week",
				fmt.Sprintf("You completed %.0f%% fewer tasks than the week before.", -in.trends.WeeklyTrend), "medium"}
		},
	},
	{
		applies: func(in insightInput) bool { return in.trends.WeeklyTrend >= 20 },
		build: func(in insightInput) Insight {
			return Insight{"trend", "More completions this week",
				fmt.Sprintf("You completed %.0f%% more tasks than the week before.", in.trends.WeeklyTrend), "low"}
		},
	},
}

// generateInsights evaluates the rule table in order.
func generateInsights(in insightInput) []Insight {
	insights := []Insight{}
	for _, rule := range insightRules {
		if rule.applies(in) {
			insights = append(insights, rule.build(in))
		}
	}
	return insights
}

// completionDuration is creation to completion, in days.
func completionDuration(t model.Task) float64 {
	d := t.FinishedAt().Sub(t.CreatedAt)
	if d < 0 {
		return 0
	}
	return d.Hours() / 24
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
