package httputil

import (
	"testing"

	"github.com/pillbox/pillbox-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleForm struct {
	Name      string `form:"name" validate:"required,max=10"`
	PerIntake int    `form:"per_intake" validate:"min=1,max=5"`
	Time      string `form:"t1" validate:"required,datetime=15:04"`
}

func TestValidate_ReportsFormFieldNames(t *testing.T) {
	err := Validate(sampleForm{Name: "", PerIntake: 9, Time: "25:00"})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "this field is required", appErr.Details["name"])
	assert.Equal(t, "must be at most 5", appErr.Details["per_intake"])
	assert.Equal(t, "must be a time of day as HH:MM", appErr.Details["t1"])
}

func TestValidate_Passes(t *testing.T) {
	assert.NoError(t, Validate(sampleForm{Name: "Aspirin", PerIntake: 1, Time: "08:00"}))
}
