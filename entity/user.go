package entity

type UserStatus uint32

const (
	UserStatusUnknown UserStatus = iota
	UserStatusPending
	UserStatusNormal
	UserStatusDeleted
)

type User struct {
	ID          *uint64    `json:"id,omitempty"`
	Email       *string    `json:"email,omitempty"`
	DisplayName *string    `json:"display_name,omitempty"`
	Status      UserStatus `json:"-"`
}

func (e *User) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *User) GetEmail() string {
	if e != nil && e.Email != nil {
		return *e.Email
	}
	return ""
}

func (e *User) GetDisplayName() string {
	if e != nil && e.DisplayName != nil {
		return *e.DisplayName
	}
	return ""
}

func (e *User) GetStatus() UserStatus {
	if e != nil {
		return e.Status
	}
	return UserStatusUnknown
}

type Product struct {
	ID    *uint64  `json:"id,omitempty"`
	Name  *string  `json:"name,omitempty"`
	Price *float64 `json:"price,omitempty"`
	Image *string  `json:"image,omitempty"`
}

func (e *Product) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}
