package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsInnerCode(t *testing.T) {
	inner := ConfigInvalid("n_sim must be >= 1")
	err := Wrap(inner, "loading validation config")

	assert.Equal(t, CodeConfigInvalid, GetCode(err, CodeInternalError))
	assert.Equal(t, "loading validation config: n_sim must be >= 1", err.Error())
	assert.True(t, stderrors.Is(err, inner))
}

func TestWrap_PlainErrorBecomesInternal(t *testing.T) {
	err := Wrapf(fmt.Errorf("boom"), "step %d", 3)
	assert.Equal(t, CodeInternalError, GetCode(err, ""))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestGetCode_ThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("saving: %w", DatabaseError("insert failed", stderrors.New("conn reset")))
	assert.True(t, IsAppError(err))
	assert.Equal(t, CodeDatabaseError, GetCode(err, CodeInternalError))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("x"), "UNKNOWN"))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeCacheError, stderrors.New("dial tcp"))
	assert.Equal(t, CodeCacheError, GetCode(err, ""))
	assert.Equal(t, "dial tcp", err.Error())
}
