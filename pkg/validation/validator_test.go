package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decisionRequest struct {
	Status string `json:"status" validate:"required,verification_decision"`
	Notes  string `json:"notes" validate:"max=20"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		req       decisionRequest
		wantField string
		wantMsg   string
	}{
		{name: "verified", req: decisionRequest{Status: "verified"}},
		{name: "rejected with notes", req: decisionRequest{Status: "rejected", Notes: "spam"}},
		{name: "missing status", req: decisionRequest{}, wantField: "Status", wantMsg: "Status is required"},
		{name: "pending is not a decision", req: decisionRequest{Status: "pending"}, wantField: "Status", wantMsg: "Status must be either verified or rejected"},
		{name: "notes too long", req: decisionRequest{Status: "verified", Notes: "this note is far too long"}, wantField: "Notes", wantMsg: "Notes must be at most 20 characters long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			valErr, ok := err.(*ValidationError)
			require.True(t, ok)
			msg, exists := valErr.GetFieldError(tt.wantField)
			assert.True(t, exists)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestValidationError_AddError(t *testing.T) {
	v := &ValidationError{}
	assert.False(t, v.HasErrors())

	v.AddError("status", "bad")
	assert.True(t, v.HasErrors())
	assert.Equal(t, "status: bad", v.Error())
}

func TestValidationError_SortedMessage(t *testing.T) {
	v := &ValidationError{}
	v.AddError("notes", "too long")
	v.AddError("status", "missing")

	assert.Equal(t, "notes: too long; status: missing", v.Error())
}
