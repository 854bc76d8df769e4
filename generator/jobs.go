package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// DefaultPollInterval is the pause before each poll of a thread's runs.
const DefaultPollInterval = time.Second

// ErrPollLimit is returned when a run is still in progress after the
// configured number of polls.
var ErrPollLimit = errors.New("assistant run still in progress")

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// JobClient submits assistant runs and waits for them by polling.
type JobClient struct {
	api         AssistantAPI
	assistantID string
	interval    time.Duration
	maxPolls    int
	sleep       SleepFunc
	verbose     bool
	logger      *log.Logger
}

// JobOption customizes a JobClient.
type JobOption func(*JobClient)

// WithPollInterval overrides the pause between polls.
func WithPollInterval(d time.Duration) JobOption {
	return func(j *JobClient) {
		if d > 0 {
			j.interval = d
		}
	}
}

// WithMaxPolls bounds the wait loop. Zero keeps it unbounded.
func WithMaxPolls(n int) JobOption {
	return func(j *JobClient) {
		j.maxPolls = n
	}
}

// WithSleep replaces the sleep used between polls.
func WithSleep(fn SleepFunc) JobOption {
	return func(j *JobClient) {
		if fn != nil {
			j.sleep = fn
		}
	}
}

// WithLogger sets the logger and whether progress lines are printed.
func WithLogger(logger *log.Logger, verbose bool) JobOption {
	return func(j *JobClient) {
		if logger != nil {
			j.logger = logger
		}
		j.verbose = verbose
	}
}

func NewJobClient(api AssistantAPI, assistantID string, opts ...JobOption) (*JobClient, error) {
	if api == nil {
		return nil, errors.New("assistant api is required")
	}
	if assistantID == "" {
		return nil, errors.New("assistant id is required")
	}
	j := &JobClient{
		api:         api,
		assistantID: assistantID,
		interval:    DefaultPollInterval,
		sleep:       sleepContext,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func (j *JobClient) infof(format string, args ...interface{}) {
	if !j.verbose {
		return
	}
	j.logger.Printf("[INFO] [assistant] "+format, args...)
}

// Configure pushes the current behavior text and model to the assistant.
func (j *JobClient) Configure(ctx context.Context, instructions, model string) error {
	if err := j.api.UpdateAssistant(ctx, j.assistantID, instructions, model); err != nil {
		return fmt.Errorf("updating assistant %s: %w", j.assistantID, err)
	}
	j.infof("assistant %s configured with model %s", j.assistantID, model)
	return nil
}

// RunAndWait starts a run on the thread and blocks until no run of the
// thread is in progress. It returns the number of polls made.
func (j *JobClient) RunAndWait(ctx context.Context, desc, threadID string) (int, error) {
	runID, err := j.api.CreateRun(ctx, threadID, j.assistantID)
	if err != nil {
		return 0, fmt.Errorf("%s: creating run: %w", desc, err)
	}
	j.infof("%s: run %s submitted on thread %s", desc, runID, threadID)
	polls, err := j.Wait(ctx, desc, threadID)
	if err != nil {
		return polls, fmt.Errorf("%s: %w", desc, err)
	}
	return polls, nil
}

// Wait polls all runs of the thread until none reports in_progress. Any other
// status counts as finished, so a failed run is indistinguishable from a
// completed one here; those are logged and left to the caller's response check.
func (j *JobClient) Wait(ctx context.Context, desc, threadID string) (int, error) {
	polls := 0
	for {
		if j.maxPolls > 0 && polls >= j.maxPolls {
			return polls, fmt.Errorf("%w: thread %s after %d polls", ErrPollLimit, threadID, polls)
		}
		if err := j.sleep(ctx, j.interval); err != nil {
			return polls, err
		}
		runs, err := j.api.ListRuns(ctx, threadID)
		polls++
		if err != nil {
			return polls, fmt.Errorf("listing runs of thread %s: %w", threadID, err)
		}

		pending := 0
		for _, r := range runs {
			if r.Status == RunStatusInProgress {
				pending++
			}
		}
		if pending > 0 {
			j.infof("%s: %d run(s) in progress (poll %d)", desc, pending, polls)
			continue
		}

		for _, r := range runs {
			if r.Status.Unsuccessful() {
				j.logger.Printf("[assistant] warning: %s: run %s ended with status %s, treating as done", desc, r.ID, r.Status)
			}
		}
		j.logger.Printf("[assistant] %s done after %d poll(s)", desc, polls)
		return polls, nil
	}
}

// Response reads the newest message of the thread.
func (j *JobClient) Response(ctx context.Context, threadID string) (string, error) {
	raw, err := j.api.LatestMessage(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("reading response of thread %s: %w", threadID, err)
	}
	return PostProcess(raw)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
