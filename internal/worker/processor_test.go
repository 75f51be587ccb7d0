package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/forecast"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/user"
	"github.com/aqmonitor/aqm/internal/worker"
)

type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) OnNewMeasurement(ctx context.Context, ms *measurement.Measurement) alert.Result {
	args := m.Called(ctx, ms)
	return args.Get(0).(alert.Result)
}

func (m *mockEvaluator) CheckAllLocationsForUser(ctx context.Context, userID string) (alert.Result, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(alert.Result), args.Error(1)
}

type mockForecasts struct {
	mock.Mock
}

func (m *mockForecasts) Generate(ctx context.Context, locationID string) ([]*forecast.Forecast, error) {
	args := m.Called(ctx, locationID)
	fs, _ := args.Get(0).([]*forecast.Forecast)
	return fs, args.Error(1)
}

func (m *mockForecasts) GenerateAll(ctx context.Context) (forecast.RunSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(forecast.RunSummary), args.Error(1)
}

func newProcessor(t *testing.T) (*worker.Processor, *mockEvaluator, *mockForecasts) {
	t.Helper()

	repo := measurement.NewInMemoryRepository()
	repo.AddLocation(&measurement.Location{ID: "loc_a", Name: "Harbour"})
	pm := 40.0
	require.NoError(t, repo.Create(context.Background(), &measurement.Measurement{
		ID: "msr_1", LocationID: "loc_a", PM25: &pm,
	}))

	ev := &mockEvaluator{}
	fc := &mockForecasts{}
	p := worker.NewProcessor(worker.ProcessorConfig{
		Measurements: repo,
		Evaluator:    ev,
		Forecasts:    fc,
		Logger:       zerolog.Nop(),
	})
	return p, ev, fc
}

func TestJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		job     worker.Job
		wantErr error
	}{
		{"evaluate ok", worker.Job{JobType: worker.JobEvaluateMeasurement, MeasurementID: "msr_1"}, nil},
		{"evaluate missing id", worker.Job{JobType: worker.JobEvaluateMeasurement}, worker.ErrInvalidJob},
		{"check ok", worker.Job{JobType: worker.JobCheckUser, UserID: "usr_1"}, nil},
		{"check missing user", worker.Job{JobType: worker.JobCheckUser}, worker.ErrInvalidJob},
		{"refresh all", worker.Job{JobType: worker.JobForecastRefresh}, nil},
		{"empty type", worker.Job{}, worker.ErrInvalidJob},
		{"unknown type", worker.Job{JobType: "provider_refresh"}, worker.ErrUnknownJobType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProcessor_EvaluateMeasurement(t *testing.T) {
	p, ev, _ := newProcessor(t)

	ev.On("OnNewMeasurement", mock.Anything, mock.MatchedBy(func(m *measurement.Measurement) bool {
		return m.ID == "msr_1"
	})).Return(alert.Result{Suppressed: 1}).Once()

	err := p.HandleJob(context.Background(), worker.Job{
		JobType:       worker.JobEvaluateMeasurement,
		MeasurementID: "msr_1",
	})

	require.NoError(t, err)
	ev.AssertExpectations(t)
}

func TestProcessor_EvaluateMissingMeasurement(t *testing.T) {
	p, ev, _ := newProcessor(t)

	err := p.HandleJob(context.Background(), worker.Job{
		JobType:       worker.JobEvaluateMeasurement,
		MeasurementID: "msr_missing",
	})

	require.ErrorIs(t, err, measurement.ErrMeasurementNotFound)
	assert.True(t, worker.Permanent(err))
	ev.AssertNotCalled(t, "OnNewMeasurement", mock.Anything, mock.Anything)
}

func TestProcessor_CheckUser(t *testing.T) {
	p, ev, _ := newProcessor(t)

	ev.On("CheckAllLocationsForUser", mock.Anything, "usr_1").Return(alert.Result{}, nil).Once()
	ev.On("CheckAllLocationsForUser", mock.Anything, "usr_gone").Return(alert.Result{}, user.ErrUserNotFound).Once()

	require.NoError(t, p.HandleJob(context.Background(), worker.Job{JobType: worker.JobCheckUser, UserID: "usr_1"}))

	err := p.HandleJob(context.Background(), worker.Job{JobType: worker.JobCheckUser, UserID: "usr_gone"})
	require.ErrorIs(t, err, user.ErrUserNotFound)
	assert.True(t, worker.Permanent(err))

	ev.AssertExpectations(t)
}

func TestProcessor_ForecastRefresh(t *testing.T) {
	t.Run("single location", func(t *testing.T) {
		p, _, fc := newProcessor(t)
		fc.On("Generate", mock.Anything, "loc_a").Return([]*forecast.Forecast{}, nil).Once()

		err := p.HandleJob(context.Background(), worker.Job{JobType: worker.JobForecastRefresh, LocationID: "loc_a"})

		require.NoError(t, err)
		fc.AssertExpectations(t)
		fc.AssertNotCalled(t, "GenerateAll", mock.Anything)
	})

	t.Run("single location without data", func(t *testing.T) {
		p, _, fc := newProcessor(t)
		fc.On("Generate", mock.Anything, "loc_a").Return(nil, forecast.ErrInsufficientData).Once()

		err := p.HandleJob(context.Background(), worker.Job{JobType: worker.JobForecastRefresh, LocationID: "loc_a"})

		require.ErrorIs(t, err, forecast.ErrInsufficientData)
		assert.True(t, worker.Permanent(err))
	})

	t.Run("all locations", func(t *testing.T) {
		p, _, fc := newProcessor(t)
		fc.On("GenerateAll", mock.Anything).Return(forecast.RunSummary{Generated: 3, Skipped: 1, Failed: 1}, nil).Once()

		require.NoError(t, p.HandleJob(context.Background(), worker.Job{JobType: worker.JobForecastRefresh}))
		fc.AssertExpectations(t)
	})

	t.Run("mostly failing is retryable", func(t *testing.T) {
		p, _, fc := newProcessor(t)
		fc.On("GenerateAll", mock.Anything).Return(forecast.RunSummary{Generated: 1, Failed: 4}, nil).Once()

		err := p.HandleJob(context.Background(), worker.Job{JobType: worker.JobForecastRefresh})

		require.Error(t, err)
		assert.False(t, worker.Permanent(err))
	})
}

func TestDecide(t *testing.T) {
	p, ev, fc := newProcessor(t)
	ev.On("CheckAllLocationsForUser", mock.Anything, "usr_1").Return(alert.Result{}, nil)
	fc.On("GenerateAll", mock.Anything).Return(forecast.RunSummary{}, errors.New("connection reset"))

	tests := []struct {
		name    string
		data    string
		wantAck bool
		wantErr bool
	}{
		{"ok", `{"job_type":"check_user","user_id":"usr_1"}`, true, false},
		{"malformed json", `{"job_type":`, true, true},
		{"unknown type", `{"job_type":"health_check"}`, true, true},
		{"missing field", `{"job_type":"check_user"}`, true, true},
		{"transient failure", `{"job_type":"forecast_refresh"}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, err := worker.Decide(context.Background(), p, []byte(tt.data))
			assert.Equal(t, tt.wantAck, ack)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
