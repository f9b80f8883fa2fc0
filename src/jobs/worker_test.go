package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSweeper is a mock implementation of Sweeper
type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) SweepOvertime(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandleSweepOvertimeTask(t *testing.T) {
	t.Run("runs the sweep", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("SweepOvertime", mock.Anything).Return(3, nil).Once()

		task, err := NewSweepOvertimeTask("manual")
		require.NoError(t, err)
		assert.Equal(t, TypeSweepOvertime, task.Type())

		assert.NoError(t, HandleSweepOvertimeTask(sweeper)(context.Background(), task))
		sweeper.AssertExpectations(t)
	})

	t.Run("propagates failure for retry", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("SweepOvertime", mock.Anything).Return(1, errors.New("mongo down")).Once()

		task, err := NewSweepOvertimeTask("periodic")
		require.NoError(t, err)

		err = HandleSweepOvertimeTask(sweeper)(context.Background(), task)
		assert.EqualError(t, err, "mongo down")
		sweeper.AssertExpectations(t)
	})

	t.Run("skips retry on bad payload", func(t *testing.T) {
		sweeper := new(MockSweeper)

		err := HandleSweepOvertimeTask(sweeper)(context.Background(), asynq.NewTask(TypeSweepOvertime, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		sweeper.AssertNotCalled(t, "SweepOvertime", mock.Anything)
	})

	t.Run("empty payload still sweeps", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("SweepOvertime", mock.Anything).Return(0, nil).Once()

		assert.NoError(t, HandleSweepOvertimeTask(sweeper)(context.Background(), asynq.NewTask(TypeSweepOvertime, nil)))
		sweeper.AssertExpectations(t)
	})
}

func TestMuxRoutesSweepTask(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("SweepOvertime", mock.Anything).Return(0, nil).Once()

	task, err := NewSweepOvertimeTask("manual")
	require.NoError(t, err)

	require.NoError(t, NewMux(sweeper).ProcessTask(context.Background(), task))
	sweeper.AssertExpectations(t)
}
