package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the ticket lifecycle taxonomy.
const (
	CodeDuplicateActiveTicket = "DUPLICATE_ACTIVE_TICKET"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeTicketNotFound        = "TICKET_NOT_FOUND"
	CodeChannelCreateFailed   = "CHANNEL_CREATE_FAILED"
	CodePermissionEditFailed  = "PERMISSION_EDIT_FAILED"
	CodeMessageSendFailed     = "MESSAGE_SEND_FAILED"
	CodeChannelDeleteFailed   = "CHANNEL_DELETE_FAILED"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewDuplicateActiveTicket rejects a second open request while a ticket is
// active. The existing channel ref rides along so callers can redirect the
// user there.
func NewDuplicateActiveTicket(channelID string) error {
	return NewDomainError(CodeDuplicateActiveTicket, "you already have an open ticket", http.StatusConflict, map[string]any{
		"channel_id": channelID,
	})
}

// NewInvalidTransition signals a stale or duplicate trigger; the requested
// state change does not apply to the ticket's current state.
func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTransition, message, http.StatusConflict, details)
}

// NewTicketNotFound reports that no ticket exists for the owner.
func NewTicketNotFound(ownerID string) error {
	return NewDomainError(CodeTicketNotFound, "no ticket found for owner", http.StatusNotFound, map[string]any{
		"owner_id": ownerID,
	})
}

// NewChannelCreateFailed wraps a gateway failure during channel creation.
func NewChannelCreateFailed(err error) error {
	return &DomainError{Code: CodeChannelCreateFailed, Message: "failed to create ticket channel", HTTPStatus: http.StatusInternalServerError, Err: err}
}

// NewPermissionEditFailed wraps a gateway failure editing channel permissions.
func NewPermissionEditFailed(err error) error {
	return &DomainError{Code: CodePermissionEditFailed, Message: "failed to edit channel permissions", HTTPStatus: http.StatusInternalServerError, Err: err}
}

// NewMessageSendFailed wraps a gateway failure sending a channel message.
func NewMessageSendFailed(err error) error {
	return &DomainError{Code: CodeMessageSendFailed, Message: "failed to send channel message", HTTPStatus: http.StatusInternalServerError, Err: err}
}

// NewChannelDeleteFailed wraps a gateway failure deleting a channel.
func NewChannelDeleteFailed(err error) error {
	return &DomainError{Code: CodeChannelDeleteFailed, Message: "failed to delete ticket channel", HTTPStatus: http.StatusInternalServerError, Err: err}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
