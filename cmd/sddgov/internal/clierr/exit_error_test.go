package clierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeOf(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error is fatal", cause, CodeFatal},
		{"explicit", New(CodeBlocked, "blocked"), 2},
		{"wrapped twice", fmt.Errorf("outer: %w", Wrap(CodeFindings, "lint", cause)), 1},
		{"zero normalized", New(0, "x"), 1},
		{"reported", Reported(CodeFindings), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeOf(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeFatal, "reading", cause)
	assert.Equal(t, "reading: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "boom", Wrap(CodeFatal, "", cause).Error())
	assert.Equal(t, "x", Wrap(CodeFatal, "x", nil).Error())
}

func TestReported(t *testing.T) {
	assert.True(t, IsReported(fmt.Errorf("ctx: %w", Reported(2))))
	assert.False(t, IsReported(New(2, "x")))
	assert.False(t, IsReported(errors.New("x")))
}
