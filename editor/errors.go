package editor

import "errors"

var (
	// ErrLastSlide is returned when deleting the only slide of a presentation.
	ErrLastSlide = errors.New("cannot delete the last slide")

	// ErrIndexOutOfRange is returned for a slide index outside the list.
	ErrIndexOutOfRange = errors.New("slide index out of range")

	// ErrInvalidOrder is returned by Reorder when the ids are not a
	// permutation of the current slides.
	ErrInvalidOrder = errors.New("order must list every slide exactly once")

	// ErrNoSlides is returned by edits of the current slide when the
	// presentation has none.
	ErrNoSlides = errors.New("presentation has no slides")

	// ErrProcessing is returned when opening a presentation whose slides are
	// still being generated.
	ErrProcessing = errors.New("presentation is still processing")
)
