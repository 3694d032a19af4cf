package auth

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aethra/farmops/internal/models"
)

// Permission strings granted through roles
const (
	PermCyclesCreate          = "production_cycles.create"
	PermCyclesTransition      = "production_cycles.transition"
	PermDailyLogsWrite        = "daily_logs.write"
	PermDailyLogsSubmit       = "daily_logs.submit"
	PermOverrideCutoff        = "daily_logs.override_cutoff"
	PermHarvestWrite          = "harvest.write"
	PermHarvestSubmit         = "harvest.submit"
	PermHarvestApprove        = "harvest.approve"
	PermHarvestOverrideStatus = "harvest.override_status"
	PermSalesWrite            = "sales.write"
	PermSalesTransition       = "sales.transition"
	PermPaymentsRecord        = "payments.record"
)

// RoleAdmin bypasses permission checks entirely
const RoleAdmin = "ADMIN"

// Actor is the resolved identity a request or CLI invocation acts as.
// Services take an Actor rather than reaching back into the request.
type Actor struct {
	UserID      uuid.UUID
	FarmID      uuid.UUID
	Roles       []string
	Permissions []string
}

// Can reports whether the actor holds the permission. ADMINs hold
// everything.
func (a Actor) Can(permission string) bool {
	for _, r := range a.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// System returns an actor for internal jobs (sweeps, CLI maintenance)
// that must not be blocked by permission checks.
func System() Actor {
	return Actor{Roles: []string{RoleAdmin}}
}

// PermissionService resolves users into actors
type PermissionService struct {
	db *gorm.DB
}

func NewPermissionService(db *gorm.DB) *PermissionService {
	return &PermissionService{db: db}
}

// ActorFor loads the user's roles and flattens their permission grants
func (s *PermissionService) ActorFor(userID, farmID uuid.UUID) (Actor, error) {
	var user models.User
	if err := s.db.Preload("Roles.Permissions").First(&user, "id = ?", userID).Error; err != nil {
		return Actor{}, err
	}

	actor := Actor{UserID: user.ID, FarmID: farmID}
	seen := make(map[string]bool)
	for _, role := range user.Roles {
		actor.Roles = append(actor.Roles, role.Code)
		for _, grant := range role.Permissions {
			if !seen[grant.Permission] {
				seen[grant.Permission] = true
				actor.Permissions = append(actor.Permissions, grant.Permission)
			}
		}
	}
	return actor, nil
}

// MemberOf reports whether the user has a membership on the farm
func (s *PermissionService) MemberOf(userID, farmID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.Model(&models.FarmMembership{}).
		Where("user_id = ? AND farm_id = ?", userID, farmID).
		Count(&n).Error
	return n > 0, err
}
