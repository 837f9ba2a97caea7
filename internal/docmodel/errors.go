package docmodel

import (
	stderrors "errors"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
)

var (
	// ErrUnterminatedFence is returned when a fence is opened but never closed.
	ErrUnterminatedFence = stderrors.New("unterminated fenced block")
	// ErrUnterminatedRegion is returned when a region marker has no closing marker.
	ErrUnterminatedRegion = stderrors.New("unterminated region")
	// ErrUnmatchedRegionEnd is returned for a closing marker without an opener.
	ErrUnmatchedRegionEnd = stderrors.New("region end marker without matching start")
)

func parseError(cause error, line int, detail string) error {
	return errors.WrapError(cause, errors.CategoryValidation, detail).
		Fatal().
		WithContext("line", line).
		Build()
}
