package enums

// UserRole gates back-office access.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleCustomer UserRole = "customer"
)

func (r UserRole) IsValid() bool {
	return r == UserRoleAdmin || r == UserRoleCustomer
}
