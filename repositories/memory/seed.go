package memory

import (
	"github.com/upb/emergency-console/models"
	"github.com/upb/emergency-console/rbac"
)

// DemoUsers returns one account per role sharing passwordHash. Used when the
// memory store is started with seeding enabled.
func DemoUsers(passwordHash string) []*models.User {
	dept := func(s string) *string { return &s }

	admin := models.NewUser("admin@emergency.city.gov", "Alex Admin", rbac.RoleAdmin, passwordHash)
	admin.Department = dept("IT Services")

	manager := models.NewUser("manager@emergency.city.gov", "Morgan Manager", rbac.RoleManager, passwordHash)
	manager.Department = dept("Emergency Management")

	responder := models.NewUser("responder@emergency.city.gov", "Riley Responder", rbac.RoleResponder, passwordHash)
	responder.Department = dept("Fire Station 7")

	resident := models.NewUser("resident@emergency.city.gov", "Sam Resident", rbac.RoleResident, passwordHash)

	return []*models.User{admin, manager, responder, resident}
}
