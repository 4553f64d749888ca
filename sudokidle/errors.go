package sudokidle

import (
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	// INVALID_ARGUMENT_ERROR_CODE represents an error for invalid input arguments.
	INVALID_ARGUMENT_ERROR_CODE = 3
	// FAILED_PRECONDITION_ERROR_CODE represents an error for a failed precondition.
	FAILED_PRECONDITION_ERROR_CODE = 9
	// INTERNAL_ERROR_CODE represents an internal server error.
	INTERNAL_ERROR_CODE = 13
)

var (
	ErrInternal          = runtime.NewError("internal error occurred", INTERNAL_ERROR_CODE)
	ErrBadInput          = runtime.NewError("bad input", INVALID_ARGUMENT_ERROR_CODE)
	ErrNoSessionUser     = runtime.NewError("no user ID in session", INVALID_ARGUMENT_ERROR_CODE)
	ErrPayloadDecode     = runtime.NewError("cannot decode json", INTERNAL_ERROR_CODE)
	ErrPayloadEncode     = runtime.NewError("cannot encode json", INTERNAL_ERROR_CODE)
	ErrUnknownDifficulty = runtime.NewError("unknown difficulty", INVALID_ARGUMENT_ERROR_CODE)
	ErrUnknownAbility    = runtime.NewError("unknown ability", INVALID_ARGUMENT_ERROR_CODE)
	ErrUnknownAppState   = runtime.NewError("unknown app state", INVALID_ARGUMENT_ERROR_CODE)
	ErrNoBoards          = runtime.NewError("no boards available", FAILED_PRECONDITION_ERROR_CODE)
	ErrConfigNotLoaded   = runtime.NewError("game config not loaded", INTERNAL_ERROR_CODE)
)
