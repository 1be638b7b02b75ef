package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Kind classifies where an error came from and how the UI should treat it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is raised before any network call, rendered inline per field.
	KindValidation
	// KindNetwork means the backend could not be reached.
	KindNetwork
	// KindRejected means the backend answered with a non-2xx status.
	KindRejected
	// KindUnauthorized is a 401; the session has already been cleared when this is seen.
	KindUnauthorized
	// KindGeolocation wraps device or network positioning failures.
	KindGeolocation
	// KindAction is a failed like/share/flag.
	KindAction
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindUnauthorized:
		return "unauthorized"
	case KindGeolocation:
		return "geolocation"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// Error represents a custom error with stack trace
type Error struct {
	Kind    Kind              `json:"kind"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	MsgID   string            `json:"msg_id,omitempty"` // i18n message id for the user facing text
	Fields  map[string]string `json:"fields,omitempty"` // field -> i18n message id
	Err     error             `json:"-"`
	Stack   string            `json:"stack,omitempty"`
	Context []KeyValue        `json:"context,omitempty"`
}

// KeyValue represents a key-value pair for context
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "invalid " + strings.Join(keys, ", ")
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements the errors.Wrapper interface
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Stack:   captureStack(),
	}
}

// Errorf creates a new formatted error
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(),
	}
}

// WithCode creates a rejected error carrying the backend status code
func WithCode(code int, message string) *Error {
	return &Error{
		Kind:    KindRejected,
		Code:    code,
		Message: message,
		Stack:   captureStack(),
	}
}

// Wrap wraps an error with message
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
		Stack:   captureStack(),
	}
}

// Wrapf wraps an error with formatted message
func Wrapf(kind Kind, err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
		Stack:   captureStack(),
	}
}

// Validation builds a validation error from a field -> message id map.
// It returns nil when fields is empty so callers can return it directly.
func Validation(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Fields: fields}
}

// WithMsgID sets the i18n message id used to render the error to a user
func (e *Error) WithMsgID(id string) *Error {
	if e == nil {
		return nil
	}
	e.MsgID = id
	return e
}

// WithContext adds context to an error
func (e *Error) WithContext(key, value string) *Error {
	if e == nil {
		return nil
	}
	newErr := *e
	newErr.Context = make([]KeyValue, len(e.Context), len(e.Context)+1)
	copy(newErr.Context, e.Context)
	newErr.Context = append(newErr.Context, KeyValue{Key: key, Value: value})
	return &newErr
}

// captureStack captures the current stack trace
func captureStack() string {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// 去掉 captureStack 自身和构造函数的栈帧
	lines := strings.Split(stack, "\n")
	if len(lines) > 6 {
		stack = strings.Join(lines[6:], "\n")
	}
	return strings.TrimSpace(stack)
}

func as(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in the chain
func KindOf(err error) Kind {
	if e, ok := as(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// GetCode returns the error code
func GetCode(err error) int {
	if e, ok := as(err); ok {
		return e.Code
	}
	return 0
}

// GetMessage returns the error message
func GetMessage(err error) string {
	if e, ok := as(err); ok {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// GetMsgID returns the i18n message id, if any
func GetMsgID(err error) string {
	if e, ok := as(err); ok {
		return e.MsgID
	}
	return ""
}

// GetFields returns per-field validation message ids
func GetFields(err error) map[string]string {
	if e, ok := as(err); ok {
		return e.Fields
	}
	return nil
}

// Cause returns the underlying error
func Cause(err error) error {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Err != nil {
			err = e.Err
		} else {
			return err
		}
	}
	return err
}

// Format implements fmt.Formatter
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s: %s", e.Kind, e.Error())
			if e.Stack != "" {
				fmt.Fprintf(s, "\n%s", e.Stack)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprintf(s, "%s", e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
