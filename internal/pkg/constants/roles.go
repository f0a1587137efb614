package constants

const (
	RoleFarmer          = "farmer"
	RoleAdmin           = "admin"
	RoleMarketplaceUser = "marketplaceUser"
)

// ValidRoles is the set of allowed user role values.
var ValidRoles = []string{RoleFarmer, RoleAdmin, RoleMarketplaceUser}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
