// Package models contains the FarmOps data structures.
// Farms are the tenant root; every other record belongs to a farm either
// directly or through its parent chain (Site -> Greenhouse -> Cycle).
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// =============================================================================
// TENANT & ORGANIZATION MODELS
// =============================================================================

// Farm represents a tenant/organization in the multi-tenant system
type Farm struct {
	ID                 uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	FarmCode           string         `json:"farm_code" gorm:"uniqueIndex;not null;size:50"`
	Name               string         `json:"name" gorm:"not null;size:255"`
	LegalName          string         `json:"legal_name" gorm:"size:255"`
	Country            string         `json:"country" gorm:"size:100"`
	State              string         `json:"state" gorm:"size:100"`
	Town               string         `json:"town" gorm:"size:100"`
	DefaultCurrency    string         `json:"default_currency" gorm:"size:10;default:'GHS'"`
	DefaultTimezone    string         `json:"default_timezone" gorm:"size:64;default:'Africa/Accra'"`
	DailyLogCutoffTime string         `json:"daily_log_cutoff_time" gorm:"size:8;default:'18:00:00'"`
	Status             string         `json:"status" gorm:"size:20;default:'ACTIVE'"`
	Meta               JSONB          `json:"meta" gorm:"type:jsonb;default:'{}'"`
	CreatedBy          *uuid.UUID     `json:"created_by" gorm:"type:uuid"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Sites       []Site           `json:"sites,omitempty" gorm:"foreignKey:FarmID"`
	Memberships []FarmMembership `json:"memberships,omitempty" gorm:"foreignKey:FarmID"`
}

// Site represents a physical location belonging to a farm. Its name seeds
// the code prefixes of the entities scoped under it.
type Site struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	FarmID    uuid.UUID      `json:"farm_id" gorm:"type:uuid;index;not null"`
	Name      string         `json:"name" gorm:"not null;size:255"`
	SiteType  string         `json:"site_type" gorm:"size:30;default:'FARM'"`
	Country   string         `json:"country" gorm:"size:100"`
	Region    string         `json:"region" gorm:"size:100"`
	IsActive  bool           `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Farm        *Farm        `json:"farm,omitempty" gorm:"foreignKey:FarmID"`
	Greenhouses []Greenhouse `json:"greenhouses,omitempty" gorm:"foreignKey:SiteID"`
}

// Greenhouse is a growing unit inside a site. Its farm reference is always
// recomputed from the site, never taken from a caller.
type Greenhouse struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	FarmID    uuid.UUID      `json:"farm_id" gorm:"type:uuid;index;not null"`
	SiteID    uuid.UUID      `json:"site_id" gorm:"type:uuid;index;not null"`
	Code      string         `json:"code" gorm:"size:50"`
	Name      string         `json:"name" gorm:"not null;size:255"`
	SizeSqm   *float64       `json:"size_sqm"`
	Structure string         `json:"structure" gorm:"size:50"`
	IsActive  bool           `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Farm *Farm `json:"farm,omitempty" gorm:"foreignKey:FarmID"`
	Site *Site `json:"site,omitempty" gorm:"foreignKey:SiteID"`
}

// Borehole is a water source registered under a site. Codes are allocated
// sequentially per site; BoreholeCode is the current column, Code is the
// legacy one still present on rows created before the rename.
type Borehole struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	FarmID       uuid.UUID      `json:"farm_id" gorm:"type:uuid;index;not null"`
	SiteID       uuid.UUID      `json:"site_id" gorm:"type:uuid;index;not null"`
	BoreholeCode string         `json:"borehole_code" gorm:"size:50;index"`
	Code         string         `json:"code,omitempty" gorm:"size:50;index"`
	Name         string         `json:"name" gorm:"size:255"`
	DepthM       *float64       `json:"depth_m"`
	YieldLph     *float64       `json:"yield_lph"`
	Status       string         `json:"status" gorm:"size:20;default:'OPERATIONAL'"`
	InstalledAt  *time.Time     `json:"installed_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Site *Site `json:"site,omitempty" gorm:"foreignKey:SiteID"`
}

// AssetCategory groups assets and supplies the asset code prefix
type AssetCategory struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Code      string    `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Name      string    `json:"name" gorm:"not null;size:100"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Asset is farm-owned equipment. Asset codes are sequential within
// (farm, category).
type Asset struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	FarmID     uuid.UUID      `json:"farm_id" gorm:"type:uuid;index;not null"`
	CategoryID *uuid.UUID     `json:"category_id" gorm:"type:uuid;index"`
	AssetCode  string         `json:"asset_code" gorm:"size:50;index"`
	Name       string         `json:"name" gorm:"not null;size:255"`
	Status     string         `json:"status" gorm:"size:20;default:'IN_SERVICE'"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Category *AssetCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// Customer is a buyer. Customers are global, not farm-scoped.
type Customer struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name      string    `json:"name" gorm:"not null;size:255"`
	Phone     string    `json:"phone" gorm:"size:50"`
	Email     string    `json:"email" gorm:"size:255"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HarvestLot is an aggregated, saleable lot of produce
type HarvestLot struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FarmID    uuid.UUID `json:"farm_id" gorm:"type:uuid;index;not null"`
	LotCode   string    `json:"lot_code" gorm:"size:50;index"`
	Crop      string    `json:"crop" gorm:"size:100"`
	WeightKg  float64   `json:"weight_kg"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// USER & PERMISSION MODELS
// =============================================================================

// User represents a system user
type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	FirstName    string     `json:"first_name" gorm:"size:100"`
	LastName     string     `json:"last_name" gorm:"size:100"`
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles;"`
}

// Role represents a user role (ADMIN, SUPERVISOR, WORKER, ...)
type Role struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Code      string    `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Name      string    `json:"name" gorm:"not null;size:100"`
	IsSystem  bool      `json:"is_system" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Permissions []RolePermission `json:"permissions,omitempty" gorm:"foreignKey:RoleID"`
	Users       []User           `json:"users,omitempty" gorm:"many2many:user_roles;"`
}

// RolePermission grants a single permission string to a role,
// e.g. "production_cycles.create" or "daily_logs.override_cutoff"
type RolePermission struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	RoleID     uuid.UUID `json:"role_id" gorm:"type:uuid;index;not null"`
	Permission string    `json:"permission" gorm:"not null;size:100;index"`
	CreatedAt  time.Time `json:"created_at"`
}

// FarmMembership links a user to a farm they may operate on
type FarmMembership struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FarmID    uuid.UUID `json:"farm_id" gorm:"type:uuid;index;not null"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;index;not null"`
	FarmRole  string    `json:"farm_role" gorm:"size:50"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// HOOKS
// =============================================================================

func (m *Farm) BeforeCreate(tx *gorm.DB) error           { ensureID(&m.ID); return nil }
func (m *Site) BeforeCreate(tx *gorm.DB) error           { ensureID(&m.ID); return nil }
func (m *Greenhouse) BeforeCreate(tx *gorm.DB) error     { ensureID(&m.ID); return nil }
func (m *Borehole) BeforeCreate(tx *gorm.DB) error       { ensureID(&m.ID); return nil }
func (m *AssetCategory) BeforeCreate(tx *gorm.DB) error  { ensureID(&m.ID); return nil }
func (m *Asset) BeforeCreate(tx *gorm.DB) error          { ensureID(&m.ID); return nil }
func (m *Customer) BeforeCreate(tx *gorm.DB) error       { ensureID(&m.ID); return nil }
func (m *HarvestLot) BeforeCreate(tx *gorm.DB) error     { ensureID(&m.ID); return nil }
func (m *User) BeforeCreate(tx *gorm.DB) error           { ensureID(&m.ID); return nil }
func (m *Role) BeforeCreate(tx *gorm.DB) error           { ensureID(&m.ID); return nil }
func (m *RolePermission) BeforeCreate(tx *gorm.DB) error { ensureID(&m.ID); return nil }
func (m *FarmMembership) BeforeCreate(tx *gorm.DB) error { ensureID(&m.ID); return nil }

// ensureID assigns a v4 UUID when the primary key has not been set.
// IDs are generated app-side so the same models work against postgres
// and the sqlite databases used in tests.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
