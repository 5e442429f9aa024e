package entity

// AuthContext is the identity resolved for a request. Operations receive it explicitly.
type AuthContext struct {
	UserID  uint64
	IsAdmin bool
}

func (e *AuthContext) GetUserID() uint64 {
	if e != nil {
		return e.UserID
	}
	return 0
}

func (e *AuthContext) GetIsAdmin() bool {
	return e != nil && e.IsAdmin
}

// RequestMeta carries client diagnostics. Never used for authorization.
type RequestMeta struct {
	UserAgent string
	IP        string
}

func (e *RequestMeta) GetUserAgent() string {
	if e != nil {
		return e.UserAgent
	}
	return ""
}

func (e *RequestMeta) GetIP() string {
	if e != nil {
		return e.IP
	}
	return ""
}
