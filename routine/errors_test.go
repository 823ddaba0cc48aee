package routine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/routinely/routine-engine/routine"
)

func TestUnavailable_KeepsCauseInChain(t *testing.T) {
	cause := context.DeadlineExceeded
	err := routine.Unavailable("insert completion", cause)

	assert.ErrorIs(t, err, routine.ErrGatewayUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, routine.IsUnavailable(err))
	assert.Contains(t, err.Error(), "insert completion")

	assert.NoError(t, routine.Unavailable("ping", nil))
}

func TestErrorClasses(t *testing.T) {
	notFound := &routine.NotFoundError{ID: "gone"}
	assert.True(t, routine.IsNotFound(notFound))
	assert.False(t, routine.IsUnavailable(notFound))

	var target *routine.NotFoundError
	assert.True(t, errors.As(routine.Unavailable("load", notFound), &target))
	assert.Equal(t, routine.RoutineID("gone"), target.ID)

	invalid := &routine.ValidationError{Field: "to", Reason: "before from"}
	assert.True(t, routine.IsClientError(invalid))
	assert.False(t, routine.IsClientError(routine.Unavailable("load", errors.New("io"))))
}
