package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/errcode"
	"cvbuilder/internal/validation"
)

type registerRequest struct {
	Username string  `json:"username" validate:"required,max=150"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Nickname *string `json:"nickname,omitempty" validate:"omitempty,notblank"`
	Age      int     `json:"age" validate:"gte=0"`
}

func TestValidateSuccess(t *testing.T) {
	v := validation.New()
	nick := "ally"
	err := v.Validate(registerRequest{Username: "alice", Email: "a@example.com", Password: "password1", Nickname: &nick})
	assert.NoError(t, err)
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	v := validation.New()
	blank := "   "
	err := v.Validate(registerRequest{Email: "nope", Password: "short", Nickname: &blank, Age: -1})
	require.ErrorIs(t, err, errcode.ErrValidation)

	details, ok := errcode.From(err).Details.(map[string]any)
	require.True(t, ok)
	fields, ok := details["fields"].(map[string]string)
	require.True(t, ok)

	assert.Equal(t, "is required", fields["username"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 8 characters", fields["password"])
	assert.Equal(t, "is required", fields["nickname"])
	assert.Equal(t, "must be greater than or equal to 0", fields["age"])
}
