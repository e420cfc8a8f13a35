package helper

const (
	RoleCustomer = "customer"
	RoleAdvisor  = "service_advisor"
	RoleManager  = "manager"
)

func HasRole(role string, allowedRoles ...string) bool {
	for _, allowedRole := range allowedRoles {
		if role == allowedRole {
			return true
		}
	}
	return false
}

func IsManager(role string) bool {
	return role == RoleManager
}
