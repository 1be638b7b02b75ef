package models

import "encoding/json"

// User 登录用户的资料，字段随后端变化，未知字段忽略
type User struct {
	ID         string `json:"_id"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Role       string `json:"role,omitempty"`
	IsVerified bool   `json:"isVerified,omitempty"`
}

func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	aux := struct {
		*plain
		AltID string `json:"id"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.AltID
	}
	return nil
}

func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.Name != "":
		return u.Name
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// Session 本地会话：token 与用户资料
type Session struct {
	Token string
	User  *User
}

func (s Session) Authenticated() bool { return s.Token != "" }

// AuthResponse covers login, register, verify-email and reset flows.
type AuthResponse struct {
	Token             string `json:"token,omitempty"`
	User              *User  `json:"user,omitempty"`
	NeedsVerification bool   `json:"needsVerification,omitempty"`
	UserID            string `json:"userId,omitempty"`
	Message           string `json:"message,omitempty"`
}
