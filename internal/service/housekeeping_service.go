package service

import (
	"context"
	"fmt"
	"log"
	"time"

	apperrors "taskflow/internal/errors"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// Maintenance job names, used both for scheduling and on-demand runs.
const (
	JobOverdueSweep        = "overdue"
	JobVisibilitySweep     = "visibility"
	JobNotificationCleanup = "notifications"
)

// JobSpecs holds the cron schedule of each maintenance job. An empty spec disables the job.
type JobSpecs struct {
	OverdueSweep        string
	VisibilitySweep     string
	NotificationCleanup string
}

// HousekeepingStats is a read-only snapshot of maintenance-relevant counts.
type HousekeepingStats struct {
	TotalTasks       int64     `json:"total_tasks"`
	OverdueTasks     int64     `json:"overdue_tasks"`
	ExpiredCompleted int64     `json:"expired_completed_tasks"`
	CheckedAt        time.Time `json:"checked_at"`
}

// JobResult reports one maintenance run.
type JobResult struct {
	Job      string    `json:"job"`
	Affected int64     `json:"affected"`
	RanAt    time.Time `json:"ran_at"`
	Duration string    `json:"duration"`
}

// HousekeepingService runs the periodic task maintenance jobs.
type HousekeepingService interface {
	SweepOverdue(ctx context.Context) (int64, error)
	SweepVisibility(ctx context.Context) (int64, error)
	CleanupNotifications(ctx context.Context) (int64, error)
	Stats(ctx context.Context, requester *model.User) (*HousekeepingStats, error)
	RunJob(ctx context.Context, requester *model.User, name string) (*JobResult, error)
	Register(scheduler *SchedulerService, specs JobSpecs, timeout time.Duration) error
}

type housekeepingService struct {
	tasks   TaskService
	repo    repository.TaskRepository
	now     func() time.Time
	logf    func(format string, args ...any)
	timeout time.Duration
}

// NewHousekeepingService creates the maintenance job runner.
func NewHousekeepingService(tasks TaskService, repo repository.TaskRepository) HousekeepingService {
	return &housekeepingService{
		tasks:   tasks,
		repo:    repo,
		now:     utcNow,
		logf:    log.Printf,
		timeout: 30 * time.Second,
	}
}

// SweepOverdue flags pending tasks past their due date. Running it twice in a row affects nothing the second time.
func (s *housekeepingService) SweepOverdue(ctx context.Context) (int64, error) {
	return s.tasks.MarkOverdue(ctx)
}

// SweepVisibility hides completed tasks whose visibility window has ended.
func (s *housekeepingService) SweepVisibility(ctx context.Context) (int64, error) {
	affected, err := s.repo.HideExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("hide expired tasks: %w", err)
	}
	return affected, nil
}

// CleanupNotifications is a placeholder until notifications are persisted.
func (s *housekeepingService) CleanupNotifications(ctx context.Context) (int64, error) {
	s.logf("housekeeping: notification cleanup has nothing to do")
	return 0, ctx.Err()
}

func (s *housekeepingService) Stats(ctx context.Context, requester *model.User) (*HousekeepingStats, error) {
	if !permissionsOf(requester).CanRunMaintenance {
		return nil, apperrors.ErrPermissionDenied
	}

	now := s.now()
	total, err := s.repo.Count(ctx, repository.TaskCountFilter{})
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	overdue, err := s.repo.Count(ctx, repository.TaskCountFilter{OverdueOnly: true})
	if err != nil {
		return nil, fmt.Errorf("count overdue tasks: %w", err)
	}
	expired, err := s.repo.Count(ctx, repository.TaskCountFilter{ExpiredAt: &now})
	if err != nil {
		return nil, fmt.Errorf("count expired tasks: %w", err)
	}
	return &HousekeepingStats{
		TotalTasks:       total,
		OverdueTasks:     overdue,
		ExpiredCompleted: expired,
		CheckedAt:        now,
	}, nil
}

// RunJob triggers a maintenance job immediately.
func (s *housekeepingService) RunJob(ctx context.Context, requester *model.User, name string) (*JobResult, error) {
	if !permissionsOf(requester).CanRunMaintenance {
		return nil, apperrors.ErrPermissionDenied
	}
	job, ok := s.jobs()[name]
	if !ok {
		return nil, apperrors.ErrUnknownJob
	}

	started := s.now()
	affected, err := job(ctx)
	if err != nil {
		return nil, fmt.Errorf("run %s job: %w", name, err)
	}
	return &JobResult{
		Job:      name,
		Affected: affected,
		RanAt:    started,
		Duration: s.now().Sub(started).String(),
	}, nil
}

func (s *housekeepingService) jobs() map[string]func(context.Context) (int64, error) {
	return map[string]func(context.Context) (int64, error){
		JobOverdueSweep:        s.SweepOverdue,
		JobVisibilitySweep:     s.SweepVisibility,
		JobNotificationCleanup: s.CleanupNotifications,
	}
}

// Register schedules every job that has a spec. Each run gets its own timeout.
func (s *housekeepingService) Register(scheduler *SchedulerService, specs JobSpecs, timeout time.Duration) error {
	if timeout > 0 {
		s.timeout = timeout
	}
	jobs := s.jobs()
	for _, entry := range []struct {
		name string
		spec string
	}{
		{JobOverdueSweep, specs.OverdueSweep},
		{JobVisibilitySweep, specs.VisibilitySweep},
		{JobNotificationCleanup, specs.NotificationCleanup},
	} {
		if entry.spec == "" {
			s.logf("housekeeping: %s job disabled", entry.name)
			continue
		}
		name, job := entry.name, jobs[entry.name]
		if _, err := scheduler.ScheduleSpec(entry.spec, func() { s.runScheduled(name, job) }); err != nil {
			return fmt.Errorf("schedule %s job: %w", name, err)
		}
		s.logf("housekeeping: %s job scheduled (%s)", name, entry.spec)
	}
	return nil
}

// runScheduled never lets a failing job take the scheduler down.
func (s *housekeepingService) runScheduled(name string, job func(context.Context) (int64, error)) {
	defer func() {
		if r := recover(); r != nil {
			s.logf("housekeeping: %s job panicked: %v", name, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	affected, err := job(ctx)
	if err != nil {
		s.logf("housekeeping: %s job failed: %v", name, err)
		return
	}
	s.logf("housekeeping: %s job done, %d rows affected in %s", name, affected, time.Since(started))
}
