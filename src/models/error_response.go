package models

// ErrorResponse is the error body returned by the HTTP handlers.
type ErrorResponse struct {
	Status  int    `json:"status"`  // HTTP status code
	Message string `json:"message"` // error detail
}
