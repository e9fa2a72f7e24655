package assessment

import "errors"

var (
	// ErrUnauthorized means the caller's role or class ownership does not permit the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the referenced entity does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrMaterialUnavailable means course material could not be loaded or extracted.
	ErrMaterialUnavailable = errors.New("material unavailable")
	// ErrGenerationFormat means a question source returned a malformed question set.
	ErrGenerationFormat = errors.New("malformed generated questions")
	// ErrAssembly means quiz assembly failed; it wraps the underlying cause.
	ErrAssembly = errors.New("quiz assembly failed")
	// ErrAnswerCountMismatch means a submission has a different number of answers than the quiz has questions.
	ErrAnswerCountMismatch = errors.New("answer count does not match question count")
	// ErrAlreadySubmitted means the quiz was submitted before; a quiz is graded once.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrInvalidInput means a request is malformed or out of range.
	ErrInvalidInput = errors.New("invalid input")
)
