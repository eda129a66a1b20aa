package errors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrSSH,
		ErrExec,
		ErrTimeout,
		ErrHook,
		ErrCache,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Invalid configuration",
			suggestion: "Check your configuration file syntax",
		},
		{
			name:       "ssh error",
			code:       ErrSSH,
			message:    "Cannot connect to target",
			suggestion: "Run 'nlsh doctor' to diagnose connection issues",
		},
		{
			name:       "hook error",
			code:       ErrHook,
			message:    "Couldn't update shell startup file",
			suggestion: "Check file permissions on ~/.zshrc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)
			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrSSH, "SSH handshake failed", "Check your keys are loaded: ssh-add -l")
	msg := err.Error()

	assert.True(t, strings.HasPrefix(msg, "✗ SSH handshake failed"))
	assert.Contains(t, msg, "Check your keys are loaded")
}

func TestWrapWithCode(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapWithCode(cause, ErrSSH, "Can't reach target", "Is SSH running?")

	assert.Equal(t, ErrSSH, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsCode(t *testing.T) {
	err := New(ErrTimeout, "Command timed out", "")

	assert.True(t, IsCode(err, ErrTimeout))
	assert.False(t, IsCode(err, ErrSSH))
	assert.False(t, IsCode(nil, ErrTimeout))
	assert.False(t, IsCode(errors.New("plain"), ErrTimeout))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
	assert.Equal(t, 2, ExitCode(NewExitError(2)))

	// ExitError extracted through a wrap
	wrapped := WrapWithCode(NewExitError(2), ErrExec, "batch failed", "")
	assert.Equal(t, 2, ExitCode(wrapped))
}
