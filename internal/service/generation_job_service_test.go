package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type timetableCreatorStub struct {
	mu           sync.Mutex
	prepareErrs  []error
	storeErrs    []error
	prepareCalls int
	storeCalls   int
	actors       []string
	block        chan struct{}
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (s *timetableCreatorStub) Prepare(ctx context.Context, _ dto.GenerateTimetableRequest) (*dto.GenerationResult, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepareCalls++
	if err := popErr(&s.prepareErrs); err != nil {
		return nil, err
	}
	return conflictedResult(), nil
}

func (s *timetableCreatorStub) Store(_ context.Context, _ dto.GenerateTimetableRequest, result *dto.GenerationResult, actor string) (*dto.TimetableResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeCalls++
	s.actors = append(s.actors, actor)
	if result == nil {
		return nil, errors.New("nil result")
	}
	if err := popErr(&s.storeErrs); err != nil {
		return nil, err
	}
	return &dto.TimetableResponse{ID: "tt-42"}, nil
}

func newJobFixture(t *testing.T, creator *timetableCreatorStub) *GenerationJobService {
	t.Helper()
	svc := NewGenerationJobService(creator, nil, nil, time.Hour)
	queue := jobs.NewQueue("generation", svc.Handle, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnFailure:  svc.Fail,
	})
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)
	svc.UseQueue(queue)
	return svc
}

func waitForJob(t *testing.T, svc *GenerationJobService, id string) *dto.GenerationJobResponse {
	t.Helper()
	var last *dto.GenerationJobResponse
	require.Eventually(t, func() bool {
		resp, err := svc.Status(id)
		if err != nil {
			return false
		}
		last = resp
		return resp.Status == JobStatusSucceeded || resp.Status == JobStatusFailed
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestGenerationJobSucceeds(t *testing.T) {
	creator := &timetableCreatorStub{}
	svc := newJobFixture(t, creator)

	submitted, err := svc.Submit(timetableRequest(), "coord-1")
	require.NoError(t, err)
	assert.NotEmpty(t, submitted.JobID)

	final := waitForJob(t, svc, submitted.JobID)
	assert.Equal(t, JobStatusSucceeded, final.Status)
	assert.Equal(t, "tt-42", final.TimetableID)
	assert.Empty(t, final.Error)
	assert.Equal(t, []string{"coord-1"}, creator.actors)
}

func TestGenerationJobRetriesStorageFailures(t *testing.T) {
	creator := &timetableCreatorStub{storeErrs: []error{
		appErrors.Wrap(errors.New("connection reset"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable"),
	}}
	svc := newJobFixture(t, creator)

	submitted, err := svc.Submit(timetableRequest(), "coord-1")
	require.NoError(t, err)

	final := waitForJob(t, svc, submitted.JobID)
	assert.Equal(t, JobStatusSucceeded, final.Status)
	assert.Equal(t, 2, creator.storeCalls)
	assert.Equal(t, 1, creator.prepareCalls)
}

func TestGenerationJobSolverErrorIsNotRetried(t *testing.T) {
	creator := &timetableCreatorStub{prepareErrs: []error{
		appErrors.Clone(appErrors.ErrSolverTimeout, "solver timed out"),
	}}
	svc := newJobFixture(t, creator)

	submitted, err := svc.Submit(timetableRequest(), "coord-1")
	require.NoError(t, err)

	final := waitForJob(t, svc, submitted.JobID)
	assert.Equal(t, JobStatusFailed, final.Status)
	assert.Equal(t, "solver timed out", final.Error)
	assert.Equal(t, 1, creator.prepareCalls)
	assert.Zero(t, creator.storeCalls)
}

func TestGenerationJobGivesUpAfterRetries(t *testing.T) {
	storeErr := appErrors.Wrap(errors.New("connection reset"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
	creator := &timetableCreatorStub{storeErrs: []error{storeErr, storeErr, storeErr}}
	svc := newJobFixture(t, creator)

	submitted, err := svc.Submit(timetableRequest(), "coord-1")
	require.NoError(t, err)

	final := waitForJob(t, svc, submitted.JobID)
	assert.Equal(t, JobStatusFailed, final.Status)
	assert.Equal(t, "failed to store timetable", final.Error)
	assert.Equal(t, 3, creator.storeCalls)
	assert.Equal(t, 1, creator.prepareCalls)
}

func TestGenerationJobUnavailableSolverIsFinal(t *testing.T) {
	creator := &timetableCreatorStub{prepareErrs: []error{
		appErrors.Clone(appErrors.ErrSolverUnavailable, "solver environment is not ready"),
	}}
	svc := newJobFixture(t, creator)

	submitted, err := svc.Submit(timetableRequest(), "coord-1")
	require.NoError(t, err)

	final := waitForJob(t, svc, submitted.JobID)
	assert.Equal(t, JobStatusFailed, final.Status)
	assert.Equal(t, 1, creator.prepareCalls)
}

func TestGenerationJobStopFailsQueuedJobs(t *testing.T) {
	creator := &timetableCreatorStub{block: make(chan struct{})}
	svc := NewGenerationJobService(creator, nil, nil, time.Hour)
	queue := jobs.NewQueue("generation", svc.Handle, jobs.QueueConfig{Workers: 1, BufferSize: 4, OnFailure: svc.Fail})
	queue.Start(context.Background())
	svc.UseQueue(queue)

	first, err := svc.Submit(timetableRequest(), "coord-1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		resp, err := svc.Status(first.JobID)
		return err == nil && resp.Status == JobStatusRunning
	}, time.Second, 5*time.Millisecond)
	second, err := svc.Submit(timetableRequest(), "coord-1")
	require.NoError(t, err)

	queue.Stop()

	waiting, err := svc.Status(second.JobID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, waiting.Status)
	assert.Equal(t, "generation queue stopped before the job ran", waiting.Error)
	assert.Zero(t, creator.storeCalls)
}

func TestGenerationJobSubmitValidates(t *testing.T) {
	svc := newJobFixture(t, &timetableCreatorStub{})
	req := timetableRequest()
	req.Teachers = nil

	_, err := svc.Submit(req, "coord-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestGenerationJobSubmitWithoutQueue(t *testing.T) {
	svc := NewGenerationJobService(&timetableCreatorStub{}, nil, nil, 0)
	_, err := svc.Submit(timetableRequest(), "coord-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))

	stopped := jobs.NewQueue("stopped", svc.Handle, jobs.QueueConfig{})
	svc.UseQueue(stopped)
	_, err = svc.Submit(timetableRequest(), "coord-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSolverUnavailable.Code))
	assert.True(t, errors.Is(err, jobs.ErrQueueNotStarted))
}

func TestGenerationJobStatusUnknown(t *testing.T) {
	svc := NewGenerationJobService(&timetableCreatorStub{}, nil, nil, 0)
	_, err := svc.Status("nope")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestGenerationJobStoreExpiresFinishedJobs(t *testing.T) {
	store := newGenerationJobStore(time.Minute)
	old := time.Now().UTC().Add(-2 * time.Minute)
	store.Save(generationJob{ID: "done", Status: JobStatusSucceeded, SubmittedAt: old, UpdatedAt: old})

	_, ok := store.Get("done")
	assert.False(t, ok)

	store.Save(generationJob{ID: "slow", Status: JobStatusRunning, SubmittedAt: old, UpdatedAt: old})
	_, ok = store.Get("slow")
	assert.True(t, ok)
}
