package staging

import "github.com/pkg/errors"

var (
	ErrAllocation       = errors.New("buffer allocation failed")
	ErrAlreadyCommitted = errors.New("buffer already committed this frame")
	ErrMapped           = errors.New("buffer is already mapped")
)
