package services

import "errors"

// Error is a request-level failure reported back to the originating connection.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidMode          = &Error{Code: "invalid_mode", Message: "unknown chat mode"}
	ErrNicknameTaken        = &Error{Code: "nickname_taken", Message: "nickname is already in use by another connected user"}
	ErrNicknameRequired     = &Error{Code: "nickname_required", Message: "nickname is required"}
	ErrIdentityRequired     = &Error{Code: "identity_required", Message: "set a nickname first"}
	ErrNotConnected         = &Error{Code: "not_connected", Message: "connection is not registered"}
	ErrRoomNameRequired     = &Error{Code: "room_name_required", Message: "room name is required"}
	ErrRoomNotFound         = &Error{Code: "room_not_found", Message: "room does not exist"}
	ErrBanned               = &Error{Code: "banned", Message: "you are banned from this room"}
	ErrRoomDeleted          = &Error{Code: "room_deleted", Message: "room has been deleted"}
	ErrNotInRoom            = &Error{Code: "not_in_room", Message: "you are not in this room"}
	ErrNotAuthorized        = &Error{Code: "not_authorized", Message: "only the room owner can do this"}
	ErrAlreadyBanned        = &Error{Code: "already_banned", Message: "user is already banned"}
	ErrCannotBanSelf        = &Error{Code: "cannot_ban_self", Message: "you cannot ban yourself"}
	ErrAlreadyDeleted       = &Error{Code: "already_deleted", Message: "room is already deleted"}
	ErrNotDeleted           = &Error{Code: "not_deleted", Message: "room is not deleted"}
	ErrRestoreWindowExpired = &Error{Code: "restore_window_expired", Message: "restore window has expired"}
	ErrInvalidToken         = &Error{Code: "invalid_token", Message: "identity token is invalid"}
	ErrInvalidRequest       = &Error{Code: "invalid_request", Message: "malformed request"}
)

// ErrorCode extracts the code of a request error, "internal" for anything else.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
