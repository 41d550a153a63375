// Package errors provides the structured error kinds raised by the rule engine.
package errors

import "google.golang.org/grpc/codes"

// Kind is the stable category a request layer translates into a status.
type Kind string

const (
	KindUnknown          Kind = "UNKNOWN"
	KindResourceNotFound Kind = "RESOURCE_NOT_FOUND"
	KindActionConflict   Kind = "ACTION_CONFLICT"
	KindForbiddenAction  Kind = "FORBIDDEN_ACTION"
	KindInvalidAction    Kind = "INVALID_ACTION"
	KindInternal         Kind = "INTERNAL_GAME_ERROR"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Not found
	CodeGameNotFound   Code = "GAME_NOT_FOUND"
	CodePlayerNotFound Code = "PLAYER_NOT_FOUND"
	CodeCardNotFound   Code = "CARD_NOT_FOUND"
	CodeSecretNotFound Code = "SECRET_NOT_FOUND"
	CodeSetNotFound    Code = "SET_NOT_FOUND"
	CodeSagaNotFound   Code = "SAGA_NOT_FOUND"

	// Conflicts with the current action state
	CodeGameBlocked      Code = "GAME_BLOCKED"
	CodeWrongActionState Code = "WRONG_ACTION_STATE"
	CodeAlreadyResponded Code = "ALREADY_RESPONDED"
	CodeLastAggressor    Code = "LAST_AGGRESSOR"
	CodeAlreadyVoted     Code = "ALREADY_VOTED"
	CodeAlreadyDonated   Code = "ALREADY_DONATED"
	CodeGameFinished     Code = "GAME_FINISHED"

	// Turn, ownership and penalty violations
	CodeNotYourTurn    Code = "NOT_YOUR_TURN"
	CodeNotCardOwner   Code = "NOT_CARD_OWNER"
	CodeNotSecretOwner Code = "NOT_SECRET_OWNER"
	CodeNotPrompted    Code = "NOT_PROMPTED"
	CodeSocialDisgrace Code = "SOCIAL_DISGRACE"
	CodeNotEligible    Code = "NOT_ELIGIBLE"
	CodeDeviousPlay    Code = "DEVIOUS_PLAY"

	// Malformed or currently nonsensical requests
	CodeNoMatchingCombo       Code = "NO_MATCHING_COMBO"
	CodeMissingTarget         Code = "MISSING_TARGET"
	CodeInvalidTarget         Code = "INVALID_TARGET"
	CodeEmptyPlay             Code = "EMPTY_PLAY"
	CodeMixedPlay             Code = "MIXED_PLAY"
	CodeInterruptInPlay       Code = "INTERRUPT_IN_PLAY"
	CodeNotAnInterrupt        Code = "NOT_AN_INTERRUPT"
	CodeSecretAlreadyRevealed Code = "SECRET_ALREADY_REVEALED"
	CodeSecretNotRevealed     Code = "SECRET_NOT_REVEALED"
	CodeDuplicateCard         Code = "DUPLICATE_CARD"

	// Persistence and corrupt state
	CodeStoreWriteFailed Code = "STORE_WRITE_FAILED"
	CodeCorruptState     Code = "CORRUPT_STATE"
	CodeEffectCycle      Code = "EFFECT_CYCLE"
	CodeChainTooDeep     Code = "CHAIN_TOO_DEEP"
)

// Kind returns the category the code belongs to.
func (c Code) Kind() Kind {
	switch c {
	case CodeGameNotFound,
		CodePlayerNotFound,
		CodeCardNotFound,
		CodeSecretNotFound,
		CodeSetNotFound,
		CodeSagaNotFound:
		return KindResourceNotFound
	case CodeGameBlocked,
		CodeWrongActionState,
		CodeAlreadyResponded,
		CodeLastAggressor,
		CodeAlreadyVoted,
		CodeAlreadyDonated,
		CodeGameFinished:
		return KindActionConflict
	case CodeNotYourTurn,
		CodeNotCardOwner,
		CodeNotSecretOwner,
		CodeNotPrompted,
		CodeSocialDisgrace,
		CodeNotEligible,
		CodeDeviousPlay:
		return KindForbiddenAction
	case CodeNoMatchingCombo,
		CodeMissingTarget,
		CodeInvalidTarget,
		CodeEmptyPlay,
		CodeMixedPlay,
		CodeInterruptInPlay,
		CodeNotAnInterrupt,
		CodeSecretAlreadyRevealed,
		CodeSecretNotRevealed,
		CodeDuplicateCard:
		return KindInvalidAction
	case CodeStoreWriteFailed,
		CodeCorruptState,
		CodeEffectCycle,
		CodeChainTooDeep:
		return KindInternal
	default:
		return KindUnknown
	}
}

// GRPCCode maps the kind to a gRPC status code.
func (k Kind) GRPCCode() codes.Code {
	switch k {
	case KindResourceNotFound:
		return codes.NotFound
	case KindActionConflict:
		return codes.FailedPrecondition
	case KindForbiddenAction:
		return codes.PermissionDenied
	case KindInvalidAction:
		return codes.InvalidArgument
	case KindInternal:
		return codes.Internal
	default:
		return codes.Unknown
	}
}
