package der

import "fmt"

// A DecodeError describes input that is not a DER encoding of the expected
// structure, or that uses a form the encoder would not reproduce exactly.
type DecodeError struct {
	Field string
	Msg   string
	Err   error
}

func (e *DecodeError) Error() string {
	msg := "der: malformed " + e.Field
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErrorf(field, format string, args ...any) *DecodeError {
	return &DecodeError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// An EncodeError is returned when a value cannot be serialized as DER, for
// example a version outside v1..v3 or a time that does not fit its tag.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return "der: cannot encode: " + e.Err.Error()
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
