package handler

import "github.com/erp/returns/internal/interfaces/http/dto"

// APIResponse is dto.APIResponse with a typed payload, used by the API docs
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse is the body of every failed request
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// DeleteResponse confirms a deleted draft
type DeleteResponse struct {
	ReturnID string `json:"return_id" example:"0b6c3a52-9d0e-4f53-a3b1-2f4f0b0c1d2e"`
	Deleted  bool   `json:"deleted" example:"true"`
}
