package sdk

import (
	"encoding/json"
	"errors"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Stable error codes. Protocol failures use the upper-snake RPC code name;
// anything without a code is CodeUnknown.
const (
	CodeCanceled           = "CANCELED"
	CodeUnknown            = "UNKNOWN"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeDeadlineExceeded   = "DEADLINE_EXCEEDED"
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeResourceExhausted  = "RESOURCE_EXHAUSTED"
	CodeFailedPrecondition = "FAILED_PRECONDITION"
	CodeAborted            = "ABORTED"
	CodeOutOfRange         = "OUT_OF_RANGE"
	CodeUnimplemented      = "UNIMPLEMENTED"
	CodeInternal           = "INTERNAL"
	CodeUnavailable        = "UNAVAILABLE"
	CodeDataLoss           = "DATA_LOSS"
	CodeUnauthenticated    = "UNAUTHENTICATED"
)

// UnknownErrorMessage is used when a failure carries no message at all.
const UnknownErrorMessage = "Unknown error occurred"

// AscndError is the single error type returned by Client operations.
type AscndError struct {
	Message string
	Code    string
	// Details is nil unless the service attached structured details, in which
	// case it holds them under the "details" key.
	Details map[string]any

	cause error
}

func (e *AscndError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Code + ": " + e.Message
}

// Unwrap returns the transport error this one was normalized from.
func (e *AscndError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *AscndError by code.
func (e *AscndError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*AscndError); ok {
		return e.Code == t.Code
	}
	return false
}

// IsCode reports whether err normalizes to the given code.
func IsCode(err error, code string) bool {
	var ae *AscndError
	return errors.As(err, &ae) && ae.Code == code
}

type grpcStatusError interface {
	GRPCStatus() *status.Status
}

// Normalize maps any failure into an *AscndError. Structured protocol errors
// keep their code and details, plain errors become CodeUnknown with their
// message, and anything else gets UnknownErrorMessage.
func Normalize(raw error) *AscndError {
	if ae, ok := raw.(*AscndError); ok && ae != nil {
		return ae
	}
	var ae *AscndError
	if errors.As(raw, &ae) && ae != nil {
		return &AscndError{Message: raw.Error(), Code: ae.Code, Details: ae.Details, cause: raw}
	}

	var ce *connect.Error
	if errors.As(raw, &ce) {
		return &AscndError{
			Message: ce.Message(),
			Code:    connectCode(ce.Code()),
			Details: connectDetails(ce.Details()),
			cause:   raw,
		}
	}

	var gs grpcStatusError
	if errors.As(raw, &gs) {
		if st := gs.GRPCStatus(); st != nil {
			return &AscndError{
				Message: st.Message(),
				Code:    grpcCode(st.Code()),
				Details: anyDetails(st.Proto().GetDetails()),
				cause:   raw,
			}
		}
	}

	if raw != nil && raw.Error() != "" {
		return &AscndError{Message: raw.Error(), Code: CodeUnknown, cause: raw}
	}
	return &AscndError{Message: UnknownErrorMessage, Code: CodeUnknown, cause: raw}
}

func connectCode(c connect.Code) string {
	return strings.ToUpper(c.String())
}

// grpcCode maps through connect, whose codes share gRPC's numbering.
func grpcCode(c codes.Code) string {
	if c >= codes.Canceled && c <= codes.Unauthenticated {
		return connectCode(connect.Code(c))
	}
	return strings.ToUpper(c.String())
}

func connectDetails(details []*connect.ErrorDetail) map[string]any {
	if len(details) == 0 {
		return nil
	}
	out := make([]any, 0, len(details))
	for _, d := range details {
		entry := map[string]any{"type": d.Type()}
		if msg, err := d.Value(); err == nil {
			entry["value"] = messageValue(msg)
		} else {
			entry["value"] = d.Bytes()
		}
		out = append(out, entry)
	}
	return map[string]any{"details": out}
}

func anyDetails(details []*anypb.Any) map[string]any {
	if len(details) == 0 {
		return nil
	}
	out := make([]any, 0, len(details))
	for _, a := range details {
		entry := map[string]any{"type": string(a.MessageName())}
		if msg, err := a.UnmarshalNew(); err == nil {
			entry["value"] = messageValue(msg)
		} else {
			entry["value"] = a.GetValue()
		}
		out = append(out, entry)
	}
	return map[string]any{"details": out}
}

// messageValue turns a detail message into plain JSON-shaped Go values.
func messageValue(msg proto.Message) any {
	switch m := msg.(type) {
	case *structpb.Struct:
		return m.AsMap()
	case *structpb.Value:
		return m.AsInterface()
	}
	b, err := protojson.Marshal(msg)
	if err != nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	return v
}
