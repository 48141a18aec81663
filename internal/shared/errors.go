package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// API and source errors
	ErrAPIRequest        = fmt.Errorf("API request failed")
	ErrSourceUnavailable = fmt.Errorf("source unavailable")
	ErrNotFound          = fmt.Errorf("not found")

	// Library errors
	ErrMissingManifest = fmt.Errorf("song manifest not found")
	ErrHistoryNotReady = fmt.Errorf("history not initialized")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
