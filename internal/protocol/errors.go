package protocol

import "fmt"

// Validation error codes. These surface pre-mutation and are always
// recoverable by resubmitting a corrected action.
const (
	CodeUnknownAction    = "UNKNOWN_ACTION"
	CodeInvalidTarget    = "INVALID_TARGET"
	CodeNotYourTurn      = "NOT_YOUR_TURN"
	CodeMissingParameter = "MISSING_PARAMETER"
	CodeOutOfOrder       = "OUT_OF_ORDER"
)

var knownCodes = map[string]struct{}{
	CodeUnknownAction:    {},
	CodeInvalidTarget:    {},
	CodeNotYourTurn:      {},
	CodeMissingParameter: {},
	CodeOutOfOrder:       {},
}

func IsKnownCode(code string) bool {
	_, ok := knownCodes[code]
	return ok
}

// ValidationError carries a machine-readable code plus a human message.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func UnknownAction(typ string) *ValidationError {
	return &ValidationError{Code: CodeUnknownAction, Message: fmt.Sprintf("action type %q is not recognized", typ)}
}

func InvalidTarget(msg string) *ValidationError {
	return &ValidationError{Code: CodeInvalidTarget, Message: msg}
}

func NotYourTurn(player int) *ValidationError {
	return &ValidationError{Code: CodeNotYourTurn, Message: fmt.Sprintf("player %d is not the active player", player)}
}

func MissingParameter(key string) *ValidationError {
	return &ValidationError{Code: CodeMissingParameter, Message: fmt.Sprintf("required parameter %q is missing or invalid", key)}
}

func OutOfOrder(msg string) *ValidationError {
	return &ValidationError{Code: CodeOutOfOrder, Message: msg}
}
