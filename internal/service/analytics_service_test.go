package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "taskflow/internal/errors"
	"taskflow/internal/model"
)

var analyticsNow = time.Date(2024, time.May, 15, 10, 0, 0, 0, time.UTC)

func completedTask(created time.Time, took time.Duration, categoryID *uint) model.Task {
	finished := created.Add(took)
	return model.Task{
		Status:      model.TaskStatusCompleted,
		IsCompleted: true,
		CreatedAt:   created,
		UpdatedAt:   finished,
		CompletedAt: &finished,
		CategoryID:  categoryID,
	}
}

func pendingTask(created time.Time, categoryID *uint) model.Task {
	return model.Task{Status: model.TaskStatusPending, CreatedAt: created, UpdatedAt: created, CategoryID: categoryID}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)

	for _, valid := range []string{"week", "month", "quarter", "all"} {
		p, err := ParsePeriod(valid)
		require.NoError(t, err)
		assert.Equal(t, Period(valid), p)
	}

	_, err = ParsePeriod("year")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPeriod)
	assert.True(t, apperrors.IsValidation(err))
}

func TestResolveRange(t *testing.T) {
	joined := time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		period Period
		start  time.Time
	}{
		{PeriodWeek, analyticsNow.Add(-7 * 24 * time.Hour)},
		{PeriodMonth, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)},
		{PeriodQuarter, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{PeriodAll, joined},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			rng := resolveRange(tt.period, analyticsNow, joined, time.UTC)
			assert.True(t, rng.Start.Equal(tt.start), "start %s", rng.Start)
			assert.True(t, rng.End.Equal(analyticsNow))
		})
	}

	q := resolveRange(PeriodQuarter, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), joined, time.UTC)
	assert.Equal(t, time.October, q.Start.Month())
}

func TestComputeOverview(t *testing.T) {
	start := analyticsNow.Add(-6 * 24 * time.Hour)
	var tasks []model.Task
	for i := 0; i < 7; i++ {
		tasks = append(tasks, completedTask(start.Add(time.Duration(i)*time.Hour), 48*time.Hour, nil))
	}
	tasks = append(tasks, pendingTask(start, nil), pendingTask(start, nil))
	overdue := pendingTask(start, nil)
	overdue.IsOverdue = true
	tasks = append(tasks, overdue)

	o := computeOverview(DateRange{Period: PeriodWeek}, tasks)
	assert.Equal(t, 10, o.TotalTasks)
	assert.Equal(t, 7, o.CompletedTasks)
	assert.Equal(t, 3, o.PendingTasks)
	assert.Equal(t, 1, o.OverdueTasks)
	assert.Equal(t, 70.0, o.CompletionRate)
	assert.Equal(t, 2.0, o.AverageCompletionTime)

	empty := computeOverview(DateRange{}, nil)
	assert.Equal(t, 0, empty.TotalTasks)
	assert.Equal(t, 0.0, empty.CompletionRate)
	assert.Equal(t, 0.0, empty.AverageCompletionTime)
}

func TestAverageCompletionFallsBackToUpdatedAt(t *testing.T) {
	task := model.Task{
		Status:    model.TaskStatusCompleted,
		CreatedAt: analyticsNow.Add(-72 * time.Hour),
		UpdatedAt: analyticsNow,
	}
	o := computeOverview(DateRange{}, []model.Task{task})
	assert.Equal(t, 3.0, o.AverageCompletionTime)
}

func TestComputeProductivity(t *testing.T) {
	rng := resolveRange(PeriodWeek, analyticsNow, time.Time{}, time.UTC)
	work := ptr(uint(1))

	t.Run("no tasks", func(t *testing.T) {
		p := computeProductivity(computeOverview(rng, nil), nil, time.UTC)
		// speed 100, overdue 100 and focus 100 still contribute.
		assert.Equal(t, 35.0, p.Score)
		assert.Equal(t, 0.0, p.ConsistencyScore)
	})

	t.Run("perfect week", func(t *testing.T) {
		var tasks []model.Task
		for d := 0; d < 7; d++ {
			created := analyticsNow.Add(-time.Duration(d)*24*time.Hour - time.Hour)
			for i := 0; i < 3; i++ {
				tasks = append(tasks, completedTask(created, 0, work))
			}
		}
		p := computeProductivity(computeOverview(rng, tasks), tasks, time.UTC)
		assert.Equal(t, 100.0, p.CompletionRate)
		assert.Equal(t, 100.0, p.VolumeScore)
		assert.Equal(t, 100.0, p.ConsistencyScore)
		assert.Equal(t, 100.0, p.FocusScore)
		assert.Equal(t, 100.0, p.Score)
	})

	t.Run("score stays within bounds", func(t *testing.T) {
		var tasks []model.Task
		for i := 0; i < 30; i++ {
			task := pendingTask(analyticsNow.Add(-time.Hour), ptr(uint(i)))
			task.IsOverdue = true
			tasks = append(tasks, task)
		}
		p := computeProductivity(computeOverview(rng, tasks), tasks, time.UTC)
		assert.GreaterOrEqual(t, p.Score, 0.0)
		assert.LessOrEqual(t, p.Score, 100.0)
		assert.Equal(t, 0.0, p.OverdueScore)
		assert.Equal(t, 0.0, p.FocusScore)
	})
}

func TestFocusScore(t *testing.T) {
	assert.Equal(t, 100.0, focusScore(nil))
	assert.Equal(t, 100.0, focusScore([]model.Task{pendingTask(analyticsNow, ptr(uint(1))), pendingTask(analyticsNow, ptr(uint(1)))}))

	three := []model.Task{
		pendingTask(analyticsNow, ptr(uint(1))),
		pendingTask(analyticsNow, ptr(uint(2))),
		pendingTask(analyticsNow, ptr(uint(3))),
		pendingTask(analyticsNow, nil),
	}
	assert.Equal(t, 60.0, focusScore(three))
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 100.0, percentChange(0, 4))
	assert.Equal(t, 0.0, percentChange(0, 0))
	assert.Equal(t, 50.0, percentChange(4, 6))
	assert.Equal(t, -75.0, percentChange(4, 1))
}

func TestComputeTrends(t *testing.T) {
	rng := resolveRange(PeriodWeek, analyticsNow, time.Time{}, time.UTC)
	var recent, inRange []model.Task
	// Two completions in the prior week, four in the last one.
	for i := 0; i < 2; i++ {
		recent = append(recent, completedTask(analyticsNow.Add(-10*24*time.Hour), time.Hour, nil))
	}
	for i := 0; i < 4; i++ {
		task := completedTask(analyticsNow.Add(-2*24*time.Hour), time.Hour, nil)
		recent = append(recent, task)
		inRange = append(inRange, task)
	}
	inRange = append(inRange, completedTask(analyticsNow.Add(-6*24*time.Hour), time.Hour, nil))

	trends := computeTrends(&snapshot{rng: rng, now: analyticsNow, inRange: inRange, recent: recent}, time.UTC)
	assert.Equal(t, 100.0, trends.WeeklyTrend)
	assert.Equal(t, 300.0, trends.VelocityTrend)
	require.Len(t, trends.Daily, 8)
	assert.Equal(t, "2024-05-08", trends.Daily[0].Date)
	assert.Equal(t, "2024-05-15", trends.Daily[7].Date)

	var completed int
	for _, p := range trends.Daily {
		completed += p.Completed
	}
	assert.Equal(t, 5, completed)
}

func TestDailySeriesIsCapped(t *testing.T) {
	rng := DateRange{Start: analyticsNow.AddDate(-2, 0, 0), End: analyticsNow}
	series := dailySeries(nil, rng, time.UTC)
	assert.Len(t, series, maxSeriesDays)
	assert.Equal(t, "2024-05-15", series[len(series)-1].Date)
}

func TestCategoryBreakdown(t *testing.T) {
	work := &model.Category{ID: 1, Name: "Work", Color: "#FF0000"}
	home := &model.Category{ID: 2, Name: "Home", Color: "#00FF00"}
	created := analyticsNow.Add(-24 * time.Hour)

	withCategory := func(task model.Task, c *model.Category) model.Task {
		task.CategoryID = &c.ID
		task.Category = c
		return task
	}
	tasks := []model.Task{
		withCategory(pendingTask(created, nil), home),
		withCategory(completedTask(created, time.Hour, nil), work),
		withCategory(completedTask(created, time.Hour, nil), work),
		pendingTask(created, nil),
	}

	rows := categoryBreakdown(tasks)
	require.Len(t, rows, 3)
	assert.Equal(t, "Work", rows[0].Name)
	assert.Equal(t, 100.0, rows[0].CompletionRate)
	assert.Equal(t, 2, rows[0].TotalTasks)
	assert.Equal(t, "#FF0000", rows[0].Color)

	names := []string{rows[1].Name, rows[2].Name}
	assert.ElementsMatch(t, []string{"Home", uncategorized}, names)
	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i-1].ProductivityIndex, rows[i].ProductivityIndex)
	}
}

func TestPatterns(t *testing.T) {
	// 2024-05-13 is a Monday.
	monday9 := time.Date(2024, time.May, 13, 9, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		completedTask(monday9, 2*time.Hour, nil),
		pendingTask(monday9, nil),
	}

	weekly := weeklyPattern(tasks, time.UTC)
	require.Len(t, weekly, 7)
	assert.Equal(t, "Sunday", weekly[0].Day)
	assert.Equal(t, "Monday", weekly[1].Day)
	assert.Equal(t, 2, weekly[1].Created)
	assert.Equal(t, 1, weekly[1].Completed)
	assert.Equal(t, 50.0, weekly[1].Productivity)

	hourly := hourlyDistribution(tasks, time.UTC)
	require.Len(t, hourly, 24)
	assert.Equal(t, 2, hourly[9].Created)
	assert.Equal(t, 1, hourly[11].Completed)
	assert.Equal(t, 0.0, hourly[11].Ratio)
}

func TestComputeStreak(t *testing.T) {
	at := func(daysAgo int) model.Task {
		return completedTask(analyticsNow.AddDate(0, 0, -daysAgo).Add(-time.Hour), 0, nil)
	}

	streak := computeStreak([]model.Task{at(0), at(0), at(1), at(2), at(10), at(11), at(12), at(13)}, analyticsNow, time.UTC)
	assert.Equal(t, 3, streak.Current)
	assert.Equal(t, 4, streak.Longest)
	require.NotNil(t, streak.LastCompleted)

	broken := computeStreak([]model.Task{at(1), at(2)}, analyticsNow, time.UTC)
	assert.Equal(t, 0, broken.Current)
	assert.Equal(t, 2, broken.Longest)

	none := computeStreak(nil, analyticsNow, time.UTC)
	assert.Equal(t, 0, none.Current)
	assert.Nil(t, none.LastCompleted)
}

func TestGenerateInsights(t *testing.T) {
	in := insightInput{
		overview:     &Overview{TotalTasks: 10, CompletionRate: 95, OverdueTasks: 2, AverageCompletionTime: 8},
		productivity: &Productivity{ConsistencyScore: 80, FocusScore: 100},
		trends:       &Trends{WeeklyTrend: 25},
		streak:       &Streak{Current: 8},
	}
	insights := generateInsights(in)

	titles := make([]string, 0, len(insights))
	for _, i := range insights {
		titles = append(titles, i.Title)
		assert.Contains(t, []string{"high", "medium", "low"}, i.Impact)
	}
	assert.Equal(t, []string{
		"Excellent completion rate",
		"Overdue tasks",
		"Streak on fire",
		"Tasks take a while",
		"More completions this week",
	}, titles)

	assert.Equal(t, insights, generateInsights(in))

	quiet := generateInsights(insightInput{
		overview:     &Overview{},
		productivity: &Productivity{ConsistencyScore: 100, FocusScore: 100},
		trends:       &Trends{},
		streak:       &Streak{},
	})
	assert.Empty(t, quiet)
}

func TestAnalyticsService_Overview(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	user := seedUser(t, f.db, "u@example.com", model.RoleCommon, true)
	premium := seedUser(t, f.db, "p@example.com", model.RolePremium, true)

	var tasks []model.Task
	for i := 0; i < 10; i++ {
		created := now.Add(-time.Duration(i+2) * time.Hour)
		task := pendingTask(created, nil)
		if i < 7 {
			task = completedTask(created, time.Hour, nil)
		}
		task.Title = "t"
		task.Priority = model.PriorityMedium
		task.UserID = user.ID
		task.AssignedToUserID = &user.ID
		tasks = append(tasks, task)
	}
	require.NoError(t, f.db.Create(&tasks).Error)

	svc := NewAnalyticsService(f.tasks, time.UTC).(*analyticsService)
	svc.now = func() time.Time { return now }

	overview, err := svc.Overview(ctx, user, "week")
	require.NoError(t, err)
	assert.Equal(t, 10, overview.TotalTasks)
	assert.Equal(t, 7, overview.CompletedTasks)
	assert.Equal(t, 70.0, overview.CompletionRate)

	trends, err := svc.Trends(ctx, user, "week")
	require.NoError(t, err)
	assert.Equal(t, 100.0, trends.WeeklyTrend)

	dashboard, err := svc.Dashboard(ctx, user, "")
	require.NoError(t, err)
	assert.Equal(t, overview.CompletionRate, dashboard.Overview.CompletionRate)
	assert.GreaterOrEqual(t, dashboard.Streak.Longest, 1)
	assert.LessOrEqual(t, dashboard.Productivity.Score, 100.0)

	_, err = svc.Categories(ctx, user, "week")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	_, err = svc.Overview(ctx, user, "decade")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPeriod)

	empty, err := svc.Insights(ctx, premium, "month")
	require.NoError(t, err)
	assert.NotNil(t, empty)
}
