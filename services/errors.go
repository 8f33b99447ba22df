package services

import "errors"

// Error kinds surfaced by the pipeline. Callers classify with errors.Is;
// embedding and index failures carry their own sentinels in internal/ai and
// internal/vector.
var (
	// ErrExtraction: document text could not be read, or yielded no usable chunks.
	ErrExtraction = errors.New("text extraction failed")

	// ErrSynthesis: an LLM call failed after exhausting retries, or its output
	// failed JSON parsing after fence-stripping.
	ErrSynthesis = errors.New("synthesis failed")

	// ErrJobNotFound: unknown job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobBusy: evaluation re-triggered while a run is already in flight.
	ErrJobBusy = errors.New("job already processing")

	// ErrJobFinished: evaluation re-triggered on a terminal job.
	ErrJobFinished = errors.New("job already finished")
)
