package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeKinds(t *testing.T) {
	cases := map[Code]Kind{
		CodeCardNotFound:      KindResourceNotFound,
		CodeAlreadyVoted:      KindActionConflict,
		CodeLastAggressor:     KindActionConflict,
		CodeNotYourTurn:       KindForbiddenAction,
		CodeSocialDisgrace:    KindForbiddenAction,
		CodeDeviousPlay:       KindForbiddenAction,
		CodeDuplicateCard:     KindInvalidAction,
		CodeNoMatchingCombo:   KindInvalidAction,
		CodeMissingTarget:     KindInvalidAction,
		CodeStoreWriteFailed:  KindInternal,
		CodeCorruptState:      KindInternal,
		Code("SOMETHING_NEW"): KindUnknown,
	}
	for code, kind := range cases {
		assert.Equal(t, kind, code.Kind(), "code %s", code)
	}
}

func TestKindOfWrappedError(t *testing.T) {
	base := New(CodeMissingTarget, "target player required")
	wrapped := fmt.Errorf("execute effect: %w", base)

	assert.Equal(t, KindInvalidAction, KindOf(wrapped))
	assert.True(t, HasCode(wrapped, CodeMissingTarget))
	assert.True(t, stderrors.Is(wrapped, New(CodeMissingTarget, "")))
	assert.False(t, stderrors.Is(wrapped, New(CodeInvalidTarget, "")))
}

func TestKindOfForeignErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(stderrors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(CodeStoreWriteFailed, "move card", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "move card: connection reset", err.Error())
}

func TestToGRPCStatus(t *testing.T) {
	err := WithMetadata(CodeNotYourTurn, "not your turn", map[string]string{"player_id": "3"})

	st, ok := status.FromError(err.ToGRPCStatus())
	require.True(t, ok)
	assert.Equal(t, codes.PermissionDenied, st.Code())
	assert.Equal(t, "not your turn", st.Message())

	var info *errdetails.ErrorInfo
	for _, d := range st.Details() {
		if v, ok := d.(*errdetails.ErrorInfo); ok {
			info = v
		}
	}
	require.NotNil(t, info)
	assert.Equal(t, string(CodeNotYourTurn), info.Reason)
	assert.Equal(t, Domain, info.Domain)
	assert.Equal(t, "3", info.Metadata["player_id"])
}
