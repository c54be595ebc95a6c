// Package dto provides request and response shapes for the HTTP API.
package dto

import (
	"factoryledger/internal/core/notify"
)

// ListResponse wraps list results.
type ListResponse struct {
	Items  any `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	// Notifications explain why a list may be empty when the read failed.
	Notifications []notify.Notification `json:"notifications"`
}

// DataResponse wraps a single result with the notifications collected while producing it.
type DataResponse struct {
	Data          any                   `json:"data"`
	Notifications []notify.Notification `json:"notifications"`
}
