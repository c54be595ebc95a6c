package dto

// ChangeStatusRequest sets a document status.
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
