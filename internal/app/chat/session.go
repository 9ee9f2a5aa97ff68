package chat

import "relaychat/internal/app/user"

// Session is the authenticated identity bound to one connection.
// A Session value is never mutated in place; an avatar change installs a new copy.
type Session struct {
	UserID   string
	Username string
	Email    string
	Avatar   *string
}

func newSession(u *user.User) *Session {
	return &Session{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   cloneString(u.Avatar),
	}
}

// withAvatar returns a copy of s carrying avatar.
func (s *Session) withAvatar(avatar string) *Session {
	next := *s
	next.Avatar = &avatar
	return &next
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
