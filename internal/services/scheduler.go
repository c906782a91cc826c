package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/robfig/cron/v3"
)

type JobName string

const (
	JobSubscriptionSweep JobName = "subscription-sweep"
	JobDailyDiet         JobName = "daily-diet"
	JobWorkoutRenewal    JobName = "workout-renewal"
)

var jobOrder = []JobName{JobSubscriptionSweep, JobDailyDiet, JobWorkoutRenewal}

var (
	ErrUnknownJob = errors.New("unknown scheduler job")
	ErrJobRunning = errors.New("scheduler job is already running")
)

const (
	DefaultSubscriptionSchedule   = "0 1 * * *"
	DefaultDailyDietSchedule      = "0 2 * * *"
	DefaultWorkoutRenewalSchedule = "0 3 * * *"
)

type SchedulerConfig struct {
	Location               *time.Location
	SubscriptionSchedule   string
	DailyDietSchedule      string
	WorkoutRenewalSchedule string
	Now                    func() time.Time
}

// SweepResult counts what one run of a job did.
type SweepResult struct {
	Processed int `json:"processed"`
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type JobStatus struct {
	Name       JobName      `json:"name"`
	Schedule   string       `json:"schedule"`
	Scheduled  bool         `json:"scheduled"`
	Running    bool         `json:"running"`
	RunCount   int          `json:"run_count"`
	LastRunAt  *time.Time   `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time   `json:"next_run_at,omitempty"`
	LastResult *SweepResult `json:"last_result,omitempty"`
	LastError  string       `json:"last_error,omitempty"`
}

type jobState struct {
	schedule   string
	run        func(ctx context.Context) (SweepResult, error)
	entryID    cron.EntryID
	scheduled  bool
	running    bool
	runCount   int
	lastRunAt  *time.Time
	lastResult *SweepResult
	lastError  string
}

// Scheduler owns the three recurring sweeps and their execution state.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	now      func() time.Time

	profileRepo repository.ProfileRepository
	logRepo     repository.ProgressLogRepository
	dietRepo    repository.DietPlanRepository
	workoutRepo repository.WorkoutPlanRepository
	diet        *DietService
	workout     *WorkoutService

	mutex   sync.Mutex
	jobs    map[JobName]*jobState
	sweeps  sync.WaitGroup
	stopped context.Context
}

func NewScheduler(
	cfg SchedulerConfig,
	profileRepo repository.ProfileRepository,
	logRepo repository.ProgressLogRepository,
	dietRepo repository.DietPlanRepository,
	workoutRepo repository.WorkoutPlanRepository,
	diet *DietService,
	workout *WorkoutService,
) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := cronLogger{}
	scheduler := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		location:    cfg.Location,
		now:         cfg.Now,
		profileRepo: profileRepo,
		logRepo:     logRepo,
		dietRepo:    dietRepo,
		workoutRepo: workoutRepo,
		diet:        diet,
		workout:     workout,
	}

	schedules := map[JobName]string{
		JobSubscriptionSweep: orDefault(cfg.SubscriptionSchedule, DefaultSubscriptionSchedule),
		JobDailyDiet:         orDefault(cfg.DailyDietSchedule, DefaultDailyDietSchedule),
		JobWorkoutRenewal:    orDefault(cfg.WorkoutRenewalSchedule, DefaultWorkoutRenewalSchedule),
	}
	for name, schedule := range schedules {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return nil, fmt.Errorf("parsing %s schedule %q: %w", name, schedule, err)
		}
	}

	scheduler.jobs = map[JobName]*jobState{
		JobSubscriptionSweep: {schedule: schedules[JobSubscriptionSweep], run: scheduler.subscriptionSweep},
		JobDailyDiet:         {schedule: schedules[JobDailyDiet], run: scheduler.dailyDietSweep},
		JobWorkoutRenewal:    {schedule: schedules[JobWorkoutRenewal], run: scheduler.workoutRenewalSweep},
	}
	return scheduler, nil
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Start registers every job and starts the cron loop.
func (scheduler *Scheduler) Start() error {
	for _, name := range jobOrder {
		if err := scheduler.StartJob(name); err != nil {
			return err
		}
	}
	slog.Info("scheduler started", "timezone", scheduler.location.String())
	return nil
}

// Stop unregisters every job. Sweeps already running are left to finish.
func (scheduler *Scheduler) Stop() {
	for _, name := range jobOrder {
		scheduler.StopJob(name)
	}
	stopped := scheduler.cron.Stop()
	scheduler.mutex.Lock()
	scheduler.stopped = stopped
	scheduler.mutex.Unlock()
	slog.Info("scheduler stopped")
}

// Wait blocks until every in-flight sweep has returned. Call it after Stop
// to also cover runs the cron loop dispatched just before stopping.
func (scheduler *Scheduler) Wait() {
	scheduler.mutex.Lock()
	stopped := scheduler.stopped
	scheduler.mutex.Unlock()
	if stopped != nil {
		<-stopped.Done()
	}
	scheduler.sweeps.Wait()
}

func (scheduler *Scheduler) StartJob(name JobName) error {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	state, ok := scheduler.jobs[name]
	if !ok {
		return fmt.Errorf("starting %q: %w", name, ErrUnknownJob)
	}
	if state.scheduled {
		return nil
	}

	entryID, err := scheduler.cron.AddFunc(state.schedule, func() {
		run, err := scheduler.begin(name)
		if err != nil {
			return
		}
		run.finish(context.Background())
	})
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}
	state.entryID = entryID
	state.scheduled = true
	scheduler.cron.Start()

	slog.Info("scheduled job", "job", name, "schedule", state.schedule)
	return nil
}

func (scheduler *Scheduler) StopJob(name JobName) error {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	state, ok := scheduler.jobs[name]
	if !ok {
		return fmt.Errorf("stopping %q: %w", name, ErrUnknownJob)
	}
	if !state.scheduled {
		return nil
	}
	scheduler.cron.Remove(state.entryID)
	state.scheduled = false
	slog.Info("unscheduled job", "job", name)
	return nil
}

// Trigger marks the job as running and finishes the run in the background.
// It returns ErrJobRunning when a run is already in progress.
func (scheduler *Scheduler) Trigger(name JobName) error {
	run, err := scheduler.begin(name)
	if err != nil {
		return err
	}
	go run.finish(context.Background())
	return nil
}

func (scheduler *Scheduler) TriggerSubscriptionSweep() error {
	return scheduler.Trigger(JobSubscriptionSweep)
}

func (scheduler *Scheduler) TriggerDailyDiet() error {
	return scheduler.Trigger(JobDailyDiet)
}

func (scheduler *Scheduler) TriggerWorkoutRenewal() error {
	return scheduler.Trigger(JobWorkoutRenewal)
}

// Run executes the job synchronously.
func (scheduler *Scheduler) Run(ctx context.Context, name JobName) (SweepResult, error) {
	run, err := scheduler.begin(name)
	if err != nil {
		return SweepResult{}, err
	}
	return run.finish(ctx)
}

func (scheduler *Scheduler) RunSubscriptionSweep(ctx context.Context) (SweepResult, error) {
	return scheduler.Run(ctx, JobSubscriptionSweep)
}

func (scheduler *Scheduler) RunDailyDietSweep(ctx context.Context) (SweepResult, error) {
	return scheduler.Run(ctx, JobDailyDiet)
}

func (scheduler *Scheduler) RunWorkoutRenewalSweep(ctx context.Context) (SweepResult, error) {
	return scheduler.Run(ctx, JobWorkoutRenewal)
}

func (scheduler *Scheduler) Status() []JobStatus {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	statuses := make([]JobStatus, 0, len(jobOrder))
	for _, name := range jobOrder {
		state := scheduler.jobs[name]
		status := JobStatus{
			Name:       name,
			Schedule:   state.schedule,
			Scheduled:  state.scheduled,
			Running:    state.running,
			RunCount:   state.runCount,
			LastRunAt:  state.lastRunAt,
			LastResult: state.lastResult,
			LastError:  state.lastError,
		}
		if state.scheduled {
			if next := scheduler.cron.Entry(state.entryID).Next; !next.IsZero() {
				status.NextRunAt = &next
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// jobRun is a run that has been recorded as started and still has to do
// its work.
type jobRun struct {
	scheduler *Scheduler
	name      JobName
	state     *jobState
	startedAt time.Time
}

// begin records the run before any work starts so status shows it as
// running. A job never runs twice at once.
func (scheduler *Scheduler) begin(name JobName) (*jobRun, error) {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	state, ok := scheduler.jobs[name]
	if !ok {
		return nil, fmt.Errorf("running %q: %w", name, ErrUnknownJob)
	}
	if state.running {
		slog.Warn("skipping job run, previous run still in progress", "job", name)
		return nil, fmt.Errorf("running %s: %w", name, ErrJobRunning)
	}
	startedAt := scheduler.now()
	state.running = true
	state.runCount++
	state.lastRunAt = &startedAt
	scheduler.sweeps.Add(1)

	return &jobRun{scheduler: scheduler, name: name, state: state, startedAt: startedAt}, nil
}

func (run *jobRun) finish(ctx context.Context) (SweepResult, error) {
	scheduler := run.scheduler
	defer scheduler.sweeps.Done()

	slog.Info("job started", "job", run.name)
	result, err := run.state.run(ctx)

	scheduler.mutex.Lock()
	run.state.running = false
	run.state.lastResult = &result
	run.state.lastError = ""
	if err != nil {
		run.state.lastError = err.Error()
	}
	scheduler.mutex.Unlock()

	if err != nil {
		slog.Error("job failed", "job", run.name, "error", err)
		return result, err
	}
	slog.Info("job finished",
		"job", run.name,
		"processed", result.Processed,
		"generated", result.Generated,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", scheduler.now().Sub(run.startedAt),
	)
	return result, nil
}

// Today returns the calendar date at now in the profile's timezone, or in
// fallback when the profile has none or an unknown one.
func Today(profile models.UserProfile, fallback *time.Location, now time.Time) string {
	location := fallback
	if profile.Timezone != "" {
		if loaded, err := time.LoadLocation(profile.Timezone); err == nil {
			location = loaded
		}
	}
	if location == nil {
		location = time.UTC
	}
	return now.In(location).Format(models.DateLayout)
}

func addDays(date string, days int) string {
	parsed, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return parsed.AddDate(0, 0, days).Format(models.DateLayout)
}

func (scheduler *Scheduler) subscriptionSweep(ctx context.Context) (SweepResult, error) {
	expired, err := scheduler.profileRepo.ExpireSubscriptions(ctx, scheduler.now())
	if err != nil {
		return SweepResult{}, err
	}
	return SweepResult{Processed: int(expired)}, nil
}

type sweepOutcome int

const (
	outcomeGenerated sweepOutcome = iota
	outcomeSkipped
)

func (result *SweepResult) record(outcome sweepOutcome, err error) {
	switch {
	case err != nil:
		result.Failed++
	case outcome == outcomeGenerated:
		result.Generated++
	default:
		result.Skipped++
	}
}

func (scheduler *Scheduler) dailyDietSweep(ctx context.Context) (SweepResult, error) {
	profiles, err := scheduler.profileRepo.FindEligibleForDailyGeneration(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing eligible users: %w", err)
	}

	now := scheduler.now()
	var result SweepResult
	for _, profile := range profiles {
		result.Processed++
		outcome, err := scheduler.generateDailyDiet(ctx, profile, now)
		if err != nil {
			slog.Error("daily diet generation failed", "user_id", profile.UserID, "error", err)
		}
		result.record(outcome, err)
	}
	return result, nil
}

func (scheduler *Scheduler) generateDailyDiet(ctx context.Context, profile models.UserProfile, now time.Time) (sweepOutcome, error) {
	today := Today(profile, scheduler.location, now)

	_, err := scheduler.dietRepo.FindByUserAndDate(ctx, profile.UserID, today)
	if err == nil {
		return outcomeSkipped, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return outcomeSkipped, fmt.Errorf("checking existing plan: %w", err)
	}

	var previousLogID string
	log, err := scheduler.logRepo.FindLatestBefore(ctx, profile.UserID, today)
	switch {
	case err == nil && log.Date == addDays(today, -1):
		previousLogID = log.ID
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		slog.Warn("loading yesterday's progress log", "user_id", profile.UserID, "error", err)
	}

	_, err = scheduler.diet.CreatePlan(ctx, DietPlanRequest{
		UserID:        profile.UserID,
		Date:          today,
		PreviousLogID: previousLogID,
		Source:        models.DietPlanSourceAutoDaily,
		Notes:         "Generated automatically by the daily plan job",
	})
	if errors.Is(err, repository.ErrConflict) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}
	return outcomeGenerated, nil
}

func (scheduler *Scheduler) workoutRenewalSweep(ctx context.Context) (SweepResult, error) {
	now := scheduler.now()
	today := now.In(scheduler.location).Format(models.DateLayout)

	plans, err := scheduler.workoutRepo.FindExpired(ctx, today)
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing expired cycles: %w", err)
	}

	var result SweepResult
	for _, plan := range plans {
		result.Processed++
		outcome, err := scheduler.renewWorkout(ctx, plan, now)
		if err != nil {
			slog.Error("workout renewal failed", "plan_id", plan.ID, "user_id", plan.UserID, "error", err)
		}
		result.record(outcome, err)
	}
	return result, nil
}

func (scheduler *Scheduler) renewWorkout(ctx context.Context, plan models.WorkoutPlan, now time.Time) (sweepOutcome, error) {
	err := scheduler.workoutRepo.UpdateStatus(ctx, plan.ID, models.WorkoutStatusActive, models.WorkoutStatusCompleted)
	if errors.Is(err, repository.ErrNotFound) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, fmt.Errorf("completing cycle: %w", err)
	}

	profile, err := scheduler.profileRepo.FindByUserID(ctx, plan.UserID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !profile.IsComplete()) {
		slog.Info("cycle completed without renewal, profile incomplete", "plan_id", plan.ID, "user_id", plan.UserID)
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, fmt.Errorf("loading profile: %w", err)
	}

	startDate := Today(profile, scheduler.location, now)
	if startDate <= plan.EndDate {
		startDate = addDays(plan.EndDate, 1)
	}

	opts := WorkoutOptions{}
	if days := len(plan.Days); days >= minDaysPerWeek && days <= maxDaysPerWeek {
		opts.DaysPerWeek = days
	}

	_, err = scheduler.workout.CreateCycle(ctx, plan.UserID, startDate, plan.DurationWeeks, opts)
	if errors.Is(err, repository.ErrConflict) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}
	return outcomeGenerated, nil
}

// cronLogger routes the cron library's logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
