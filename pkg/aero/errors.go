package aero

import (
	"errors"
	"fmt"
)

// ResultCode is the server status byte of a command response.
type ResultCode int

const (
	ResultOK                   ResultCode = 0
	ResultServerError          ResultCode = 1
	ResultKeyNotFound          ResultCode = 2
	ResultGenerationError      ResultCode = 3
	ResultParameterError       ResultCode = 4
	ResultKeyExists            ResultCode = 5
	ResultBinExists            ResultCode = 6
	ResultClusterKeyMismatch   ResultCode = 7
	ResultServerMemoryError    ResultCode = 8
	ResultTimeout              ResultCode = 9
	ResultAlwaysForbidden      ResultCode = 10
	ResultPartitionUnavailable ResultCode = 11
	ResultBinTypeError         ResultCode = 12
	ResultRecordTooBig         ResultCode = 13
	ResultKeyBusy              ResultCode = 14
	ResultScanAbort            ResultCode = 15
	ResultUnsupportedFeature   ResultCode = 16
	ResultBinNotFound          ResultCode = 17
	ResultDeviceOverload       ResultCode = 18
	ResultKeyMismatch          ResultCode = 19
	ResultInvalidNamespace     ResultCode = 20
	ResultBinNameTooLong       ResultCode = 21
	ResultFailForbidden        ResultCode = 22
	ResultElementNotFound      ResultCode = 23
	ResultElementExists        ResultCode = 24
	ResultEnterpriseOnly       ResultCode = 25
	ResultOpNotApplicable      ResultCode = 26
	ResultFilteredOut          ResultCode = 27
	ResultLostConflict         ResultCode = 28
	ResultQueryEnd             ResultCode = 50
	ResultSecurityNotSupported ResultCode = 51
	ResultSecurityNotEnabled   ResultCode = 52
	ResultInvalidCommand       ResultCode = 54
	ResultInvalidField         ResultCode = 55
	ResultIllegalState         ResultCode = 56
	ResultInvalidUser          ResultCode = 60
	ResultUserAlreadyExists    ResultCode = 61
	ResultInvalidPassword      ResultCode = 62
	ResultExpiredPassword      ResultCode = 63
	ResultForbiddenPassword    ResultCode = 64
	ResultInvalidCredential    ResultCode = 65
	ResultInvalidRole          ResultCode = 70
	ResultRoleAlreadyExists    ResultCode = 71
	ResultInvalidPrivilege     ResultCode = 72
	ResultInvalidWhitelist     ResultCode = 73
	ResultQuotasNotEnabled     ResultCode = 74
	ResultInvalidQuota         ResultCode = 75
	ResultNotAuthenticated     ResultCode = 80
	ResultRoleViolation        ResultCode = 81
	ResultNotWhitelisted       ResultCode = 82
	ResultQuotaExceeded        ResultCode = 83
	ResultUDFBadResponse       ResultCode = 100
	ResultBatchDisabled        ResultCode = 150
	ResultBatchMaxRequests     ResultCode = 151
	ResultBatchQueuesFull      ResultCode = 152
	ResultIndexFound           ResultCode = 200
	ResultIndexNotFound        ResultCode = 201
	ResultIndexOOM             ResultCode = 202
	ResultIndexNotReadable     ResultCode = 203
	ResultIndexGeneric         ResultCode = 204
	ResultIndexNameMaxLen      ResultCode = 205
	ResultIndexMaxCount        ResultCode = 206
	ResultQueryAborted         ResultCode = 210
	ResultQueryQueueFull       ResultCode = 211
	ResultQueryTimeout         ResultCode = 212
	ResultQueryGeneric         ResultCode = 213
)

// Retryable reports whether a command failing with this code may be
// retried on another attempt.
func (c ResultCode) Retryable() bool {
	switch c {
	case ResultTimeout, ResultPartitionUnavailable, ResultDeviceOverload,
		ResultKeyBusy, ResultServerMemoryError:
		return true
	default:
		return false
	}
}

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultKeyNotFound:
		return "key not found"
	case ResultGenerationError:
		return "generation mismatch"
	case ResultParameterError:
		return "parameter error"
	case ResultKeyExists:
		return "key already exists"
	case ResultTimeout:
		return "server timeout"
	case ResultPartitionUnavailable:
		return "partition unavailable"
	case ResultRecordTooBig:
		return "record too big"
	case ResultDeviceOverload:
		return "device overload"
	case ResultElementNotFound:
		return "element not found"
	case ResultElementExists:
		return "element already exists"
	case ResultEnterpriseOnly:
		return "enterprise feature"
	case ResultFilteredOut:
		return "filtered out"
	case ResultInvalidUser:
		return "invalid user"
	case ResultNotAuthenticated:
		return "not authenticated"
	case ResultUDFBadResponse:
		return "udf bad response"
	case ResultIndexFound:
		return "index already exists"
	case ResultIndexNotFound:
		return "index not found"
	default:
		return fmt.Sprintf("result code %d", int(c))
	}
}

// ServerError is a non-zero result code from a node. InDoubt marks
// writes whose outcome is unknown because the failure happened after
// the request may have reached the server.
type ServerError struct {
	Code    ResultCode
	Node    string
	InDoubt bool
}

func (e *ServerError) Error() string {
	s := fmt.Sprintf("aero: %s", e.Code)
	if e.Node != "" {
		s += fmt.Sprintf(" (node %s)", e.Node)
	}
	if e.InDoubt {
		s += " (in doubt)"
	}
	return s
}

// Is matches any ServerError carrying the same code, so
// errors.Is(err, ErrKeyNotFound) works regardless of node or in-doubt
// state.
func (e *ServerError) Is(target error) bool {
	t, ok := target.(*ServerError)
	return ok && t.Code == e.Code
}

// Sentinels for the common codes.
var (
	ErrKeyNotFound     = &ServerError{Code: ResultKeyNotFound}
	ErrKeyExists       = &ServerError{Code: ResultKeyExists}
	ErrGeneration      = &ServerError{Code: ResultGenerationError}
	ErrFilteredOut     = &ServerError{Code: ResultFilteredOut}
	ErrElementNotFound = &ServerError{Code: ResultElementNotFound}
	ErrElementExists   = &ServerError{Code: ResultElementExists}
	ErrIndexFound      = &ServerError{Code: ResultIndexFound}
	ErrIndexNotFound   = &ServerError{Code: ResultIndexNotFound}
)

// ErrTimeout is returned when total_timeout elapses before a
// conclusive server answer.
var ErrTimeout = errors.New("aero: command timed out")

// ErrRecordsetClosed is returned by producers after the consumer
// closed the recordset.
var ErrRecordsetClosed = errors.New("aero: recordset closed")

// ErrInvalidArgument marks client-side validation failures; never
// retried.
var ErrInvalidArgument = errors.New("aero: invalid argument")

// ErrUnsupportedFeature is returned before any bytes go out when the
// oldest cluster node cannot serve the requested protocol feature.
var ErrUnsupportedFeature = errors.New("aero: feature not supported by server version")

// TimeoutError wraps ErrTimeout with attempt bookkeeping.
type TimeoutError struct {
	Attempts int
	InDoubt  bool
	LastErr  error
}

func (e *TimeoutError) Error() string {
	s := fmt.Sprintf("%v after %d attempts", ErrTimeout, e.Attempts)
	if e.InDoubt {
		s += " (in doubt)"
	}
	if e.LastErr != nil {
		s += ": " + e.LastErr.Error()
	}
	return s
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
func (e *TimeoutError) Unwrap() error        { return e.LastErr }

// serverError builds the error for a result code, nil for OK.
func serverError(code ResultCode, node string, inDoubt bool) error {
	if code == ResultOK {
		return nil
	}
	return &ServerError{Code: code, Node: node, InDoubt: inDoubt}
}
