package docerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, GenerationFailed.Retryable())
	assert.True(t, ValidationFailed.Retryable())
	assert.False(t, UnsupportedSource.Retryable())
	assert.False(t, Auth.Retryable())
	assert.False(t, LLMTransient.Retryable())
}

func TestErrorMessageFormatting(t *testing.T) {
	t.Parallel()

	withStep := New(ParseFailed, "parse_document_content", "boom")
	assert.Equal(t, "parse_document_content: PARSE_FAILED: boom", withStep.Error())

	noStep := New(ParseFailed, "", "boom")
	assert.Equal(t, "PARSE_FAILED: boom", noStep.Error())
}

func TestErrorfFormatsMessage(t *testing.T) {
	t.Parallel()

	err := Errorf(UnsupportedSource, "detect_format", "unsupported input format %q", "xlsx")
	assert.Equal(t, `unsupported input format "xlsx"`, err.Message)
}

func TestWrapPreservesExistingCodeWhenUnspecified(t *testing.T) {
	t.Parallel()

	inner := New(ValidationFailed, "validate_output", "empty file")
	wrapped := Wrap("", "render", inner)
	require.NotNil(t, wrapped)
	assert.Equal(t, ValidationFailed, wrapped.Code)
	assert.Same(t, inner, wrapped.Cause.(*Error))
}

func TestWrapDefaultsToInternalForPlainErrors(t *testing.T) {
	t.Parallel()

	wrapped := Wrap("", "step", errors.New("plain failure"))
	require.NotNil(t, wrapped)
	assert.Equal(t, Internal, wrapped.Code)
}

func TestWrapNilReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Wrap(Internal, "step", nil))
}

func TestWrapHonorsExplicitCode(t *testing.T) {
	t.Parallel()

	wrapped := Wrap(LLMTransient, "step", errors.New("503 overloaded"))
	assert.Equal(t, LLMTransient, wrapped.Code)
}

func TestErrorIsMatchesByCodeOnly(t *testing.T) {
	t.Parallel()

	a := New(ParseFailed, "step-a", "msg-a")
	b := New(ParseFailed, "step-b", "msg-b")
	c := New(ValidationFailed, "step-a", "msg-a")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestErrorUnwrapReachesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("root cause")
	wrapped := Wrap(Internal, "step", cause)
	assert.Same(t, cause, errors.Unwrap(wrapped))
}

func TestIsTransientMatchesKnownSubstrings(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(errors.New("HTTP 503 Service Unavailable")))
	assert.True(t, IsTransient(errors.New("model is OVERLOADED")))
	assert.True(t, IsTransient(errors.New("exceeded capacity")))
	assert.False(t, IsTransient(errors.New("invalid api key")))
	assert.False(t, IsTransient(nil))
}

func TestIsRetryableRenderChecksCodeThenMessage(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRetryableRender(New(GenerationFailed, "render", "no output")))
	assert.True(t, IsRetryableRender(errors.New("Validation failed: empty file")))
	assert.False(t, IsRetryableRender(errors.New("unrelated failure")))
	assert.False(t, IsRetryableRender(nil))
}
