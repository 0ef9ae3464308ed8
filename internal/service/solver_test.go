package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type cannedRunner struct {
	out []byte
	err error
}

func (r cannedRunner) Run(context.Context, []byte) ([]byte, error) { return r.out, r.err }

func (r cannedRunner) Check(context.Context) ([]byte, error) { return r.out, r.err }

func TestProcessSolverClientDecodesSchedule(t *testing.T) {
	client := NewProcessSolverClient(cannedRunner{out: []byte(`{"schedule":{"Monday":{"1":{"teacher":"T1","subject":"MATH"}}},"stats":{"fitness":0.8}}`)})

	out, err := client.Solve(context.Background(), models.SolverInput{})
	require.NoError(t, err)
	require.NotNil(t, out.Schedule)
	assert.Equal(t, 1, out.Schedule.AssignmentCount())
	assert.Equal(t, 0.8, out.Stats["fitness"])
}

func TestProcessSolverClientMissingSchedule(t *testing.T) {
	for _, raw := range []string{`{"stats":{}}`, `{"schedule":null}`} {
		out, err := NewProcessSolverClient(cannedRunner{out: []byte(raw)}).Solve(context.Background(), models.SolverInput{})
		require.NoError(t, err, raw)
		assert.Nil(t, out.Schedule, raw)
	}
}

func TestProcessSolverClientUndecodableSchedule(t *testing.T) {
	payloads := map[string]string{
		"non numeric period": `{"schedule":{"Monday":{"first":{"teacher":"T1","subject":"MATH"}}}}`,
		"array grid":         `{"schedule":[1,2,3]}`,
		"string cell":        `{"schedule":{"Monday":{"1":"T1"}}}`,
	}
	for name, raw := range payloads {
		t.Run(name, func(t *testing.T) {
			_, err := NewProcessSolverClient(cannedRunner{out: []byte(raw)}).Solve(context.Background(), models.SolverInput{})
			var sve *models.ScheduleValidationError
			require.True(t, errors.As(err, &sve))
			assert.Contains(t, sve.Reason, "undecodable schedule")

			stub := &solverStub{solve: func(ctx context.Context, input models.SolverInput) (*models.SolverOutput, error) {
				return NewProcessSolverClient(cannedRunner{out: []byte(raw)}).Solve(ctx, input)
			}}
			svc := newGeneratorFixture(stub, nil, nil, time.Second)
			_, err = svc.Generate(context.Background(), sampleGenerateRequest())
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrMalformedSchedule.Code, appErr.Code)
			assert.Contains(t, appErr.Details["reason"], "undecodable schedule")
		})
	}
}

func TestProcessSolverClientRejectsNonJSON(t *testing.T) {
	_, err := NewProcessSolverClient(cannedRunner{out: []byte("Traceback")}).Solve(context.Background(), models.SolverInput{})
	require.Error(t, err)
	var sve *models.ScheduleValidationError
	assert.False(t, errors.As(err, &sve))
}

func TestProcessSolverClientCheck(t *testing.T) {
	health, err := NewProcessSolverClient(cannedRunner{out: []byte(`{"valid":true}`)}).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, health.Valid)

	_, err = NewProcessSolverClient(cannedRunner{err: errors.New("exit status 2")}).Check(context.Background())
	assert.Error(t, err)
}
