package pipeline

import "errors"

// InputError is a per-request failure caused by the uploaded data. The request is
// rejected; the process keeps serving.
type InputError struct {
	Msg string
	Err error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func inputError(msg string, err error) error {
	return &InputError{Msg: msg, Err: err}
}

// IsInputError reports whether err is or wraps an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
