package handler

import (
	"engage/entity"
)

// ContextInfo is filled in by the router from the verified token and the raw request.
type ContextInfo struct {
	Auth *entity.AuthContext `json:"-" schema:"-"`
	Meta *entity.RequestMeta `json:"-" schema:"-"`
}

func (c *ContextInfo) SetAuth(auth *entity.AuthContext) {
	c.Auth = auth
}

func (c *ContextInfo) SetRequestMeta(meta *entity.RequestMeta) {
	c.Meta = meta
}

func (c *ContextInfo) GetUserID() uint64 {
	return c.Auth.GetUserID()
}

func (c *ContextInfo) GetRequestMeta() *entity.RequestMeta {
	return c.Meta
}
