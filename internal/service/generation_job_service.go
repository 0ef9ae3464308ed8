package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// Generation job states.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

const generationJobType = "timetable.generate"

type timetableCreator interface {
	Prepare(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationResult, error)
	Store(ctx context.Context, req dto.GenerateTimetableRequest, result *dto.GenerationResult, actor string) (*dto.TimetableResponse, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type generationPayload struct {
	Request dto.GenerateTimetableRequest
	Actor   string
}

type generationJob struct {
	ID          string
	Status      string
	TimetableID string
	Error       string
	SubmittedAt time.Time
	UpdatedAt   time.Time

	// result survives store retries so the solver runs once per job
	result *dto.GenerationResult
}

type generationJobStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]generationJob
}

func newGenerationJobStore(ttl time.Duration) *generationJobStore {
	return &generationJobStore{ttl: ttl, items: make(map[string]generationJob)}
}

func (s *generationJobStore) Save(job generationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[job.ID] = job
	for id, item := range s.items {
		if finished(item.Status) && time.Since(item.UpdatedAt) > s.ttl {
			delete(s.items, id)
		}
	}
}

func (s *generationJobStore) Update(id string, fn func(*generationJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.items[id]
	if !ok {
		return
	}
	fn(&job)
	job.UpdatedAt = time.Now().UTC()
	s.items[id] = job
}

func (s *generationJobStore) Get(id string) (generationJob, bool) {
	s.mu.RLock()
	job, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return generationJob{}, false
	}
	if finished(job.Status) && time.Since(job.UpdatedAt) > s.ttl {
		s.Delete(id)
		return generationJob{}, false
	}
	return job, true
}

func (s *generationJobStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func finished(status string) bool {
	return status == JobStatusSucceeded || status == JobStatusFailed
}

// GenerationJobService runs timetable generation in the background worker pool.
type GenerationJobService struct {
	timetables timetableCreator
	queue      jobEnqueuer
	store      *generationJobStore
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewGenerationJobService constructs the async front of TimetableService.Generate.
// Attach Handle and Fail to the queue that is passed in.
func NewGenerationJobService(timetables timetableCreator, validate *validator.Validate, logger *zap.Logger, ttl time.Duration) *GenerationJobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &GenerationJobService{
		timetables: timetables,
		store:      newGenerationJobStore(ttl),
		validator:  validate,
		logger:     logger,
	}
}

// UseQueue sets the queue jobs are submitted to.
func (s *GenerationJobService) UseQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Submit validates the request and schedules it.
func (s *GenerationJobService) Submit(req dto.GenerateTimetableRequest, actor string) (*dto.GenerationJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "generation queue is not configured")
	}

	now := time.Now().UTC()
	job := generationJob{ID: uuid.NewString(), Status: JobStatusQueued, SubmittedAt: now, UpdatedAt: now}
	s.store.Save(job)

	if err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    generationJobType,
		Payload: generationPayload{Request: req, Actor: actor},
	}); err != nil {
		s.store.Delete(job.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrSolverUnavailable.Code, appErrors.ErrSolverUnavailable.Status, "generation queue is unavailable")
	}

	s.logger.Info("generation job queued", zap.String("job_id", job.ID), zap.String("actor", actor))
	return toJobResponse(job), nil
}

// Status reports a job. Finished jobs are forgotten after the TTL.
func (s *GenerationJobService) Status(jobID string) (*dto.GenerationJobResponse, error) {
	job, ok := s.store.Get(strings.TrimSpace(jobID))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	return toJobResponse(job), nil
}

// Handle is the queue handler. Solver and validation failures are final. A failed insert is
// left to the queue's retry, which stores the already solved result again.
func (s *GenerationJobService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(generationPayload)
	if !ok {
		return jobs.Permanent(appErrors.Clone(appErrors.ErrInternal, "unexpected generation payload"))
	}
	var result *dto.GenerationResult
	s.store.Update(job.ID, func(j *generationJob) {
		j.Status = JobStatusRunning
		result = j.result
	})

	if result == nil {
		var err error
		result, err = s.timetables.Prepare(ctx, payload.Request)
		if err != nil {
			return s.retryOrFail(job.ID, err)
		}
		s.store.Update(job.ID, func(j *generationJob) {
			j.result = result
		})
	}

	resp, err := s.timetables.Store(ctx, payload.Request, result, payload.Actor)
	if err != nil {
		return s.retryOrFail(job.ID, err)
	}

	s.store.Update(job.ID, func(j *generationJob) {
		j.Status = JobStatusSucceeded
		j.TimetableID = resp.ID
		j.Error = ""
		j.result = nil
	})
	s.logger.Info("generation job finished", zap.String("job_id", job.ID), zap.String("timetable_id", resp.ID))
	return nil
}

func (s *GenerationJobService) retryOrFail(jobID string, err error) error {
	if !retryable(err) {
		return jobs.Permanent(err)
	}
	s.store.Update(jobID, func(j *generationJob) {
		j.Status = JobStatusQueued
		j.Error = appErrors.FromError(err).Message
	})
	return err
}

func retryable(err error) bool {
	for _, final := range []*appErrors.Error{
		appErrors.ErrSolver,
		appErrors.ErrSolverTimeout,
		appErrors.ErrSolverUnavailable,
		appErrors.ErrMalformedSchedule,
		appErrors.ErrValidation,
	} {
		if appErrors.HasCode(err, final.Code) {
			return false
		}
	}
	return true
}

// Fail records a job the queue gave up on.
func (s *GenerationJobService) Fail(job jobs.Job, err error) {
	s.store.Update(job.ID, func(j *generationJob) {
		j.Status = JobStatusFailed
		j.Error = appErrors.FromError(err).Message
		if errors.Is(err, jobs.ErrQueueStopped) {
			j.Error = "generation queue stopped before the job ran"
		}
		j.result = nil
	})
}

func toJobResponse(job generationJob) *dto.GenerationJobResponse {
	return &dto.GenerationJobResponse{
		JobID:       job.ID,
		Status:      job.Status,
		TimetableID: job.TimetableID,
		Error:       job.Error,
		SubmittedAt: job.SubmittedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}
}
