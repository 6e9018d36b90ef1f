package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Email string `json:"email" validate:"required,email"`
	Owner string `json:"owner_id" validate:"omitempty,uuid"`
}

func TestFieldErrorsUseJSONNames(t *testing.T) {
	err := Struct(payload{Owner: "nope"})
	require.Error(t, err)

	assert.Equal(t, map[string]any{"email": "required", "owner_id": "uuid"}, FieldErrors(err))
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("3f1c1f43-9a51-4a0e-9d3c-6a9b7c1d2e3f", "required,uuid"))
	assert.Error(t, Var("abc", "required,uuid"))
	assert.Nil(t, FieldErrors(assert.AnError))
}
