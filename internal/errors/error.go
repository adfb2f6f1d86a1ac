package errors

import "errors"

var (
	ErrEngineUnavailable       = errors.New("engine is not running")
	ErrEngineAlreadyStarted    = errors.New("engine instance is already alive")
	ErrEngineTimeout           = errors.New("engine did not answer in time")
	ErrEngineProtocol          = errors.New("unparseable engine output")
	ErrRequestSuperseded       = errors.New("request was superseded by a newer one")
	ErrReviewAlreadyInProgress = errors.New("a review is already in progress")
	ErrReviewCanceled          = errors.New("review was canceled")
	ErrReviewNotFound          = errors.New("no finished review available")
	ErrInvalidMoves            = errors.New("invalid move list")
)
