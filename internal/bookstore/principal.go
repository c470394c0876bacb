package bookstore

// Principal is the verified caller of a commerce operation.
type Principal struct {
	UserID  string
	Role    Role
	StoreID string // set for owners
}

// Require checks the caller holds role.
func (p Principal) Require(role Role) error {
	if p.UserID == "" {
		return Reject(ErrUnauthenticated, "Authentication required")
	}
	switch p.Role {
	case RoleOwner:
		if role == RoleOwner {
			return nil
		}
		return Reject(ErrForbidden, "User access required")
	case RoleUser:
		if role == RoleUser {
			return nil
		}
		return Reject(ErrForbidden, "Owner access required")
	default:
		return Reject(ErrForbidden, "Unknown role")
	}
}
