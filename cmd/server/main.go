// FarmOps - farm operations backend
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/aethra/farmops/internal/alerts"
	"github.com/aethra/farmops/internal/api"
	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/codegen"
	"github.com/aethra/farmops/internal/config"
	"github.com/aethra/farmops/internal/database"
	"github.com/aethra/farmops/internal/models"
)

var Version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	if len(os.Args) > 1 {
		runCLI()
		return
	}
	startServer()
}

func startServer() {
	fmt.Printf("FarmOps %s - Starting...\n", Version)

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connected")

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	cfgSvc := config.NewConfigService(db)
	if err := cfgSvc.SetupDefaultConfig(); err != nil {
		log.Fatalf("Config setup failed: %v", err)
	}
	cfg := cfgSvc.LoadConfig()

	router := api.SetupRouter(db, cfg)

	port := cfg.Server.Port
	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// CLI
func runCLI() {
	switch os.Args[1] {
	case "serve":
		startServer()
	case "migrate":
		db := mustConnectDB()
		if err := database.RunMigrations(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("Migrations complete")
	case "seed-defaults":
		runSeedDefaults()
	case "farm":
		runFarmCmd()
	case "user":
		runUserCmd()
	case "check-missing-logs":
		runCheckMissingLogs()
	default:
		printUsage()
	}
}

func mustConnectDB() *gorm.DB {
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	return db
}

func printUsage() {
	fmt.Println(`FarmOps - farm operations backend

Usage:
  server                      Start the HTTP server
  server serve                Start the HTTP server
  server migrate              Run database migrations
  server seed-defaults        Seed default config and system roles
  server farm list            List farms
  server farm create <name>   Create a farm
  server user list            List users
  server user create <email> <password>  Create a user
  server check-missing-logs   Raise alerts for cycles missing today's log`)
}

func runSeedDefaults() {
	db := mustConnectDB()
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	cfgSvc := config.NewConfigService(db)
	if err := cfgSvc.SetupDefaultConfig(); err != nil {
		log.Fatalf("Config seed failed: %v", err)
	}

	roles := []struct {
		code  string
		name  string
		perms []string
	}{
		{auth.RoleAdmin, "Administrator", nil},
		{"SUPERVISOR", "Farm Supervisor", []string{
			auth.PermCyclesCreate, auth.PermCyclesTransition,
			auth.PermDailyLogsWrite, auth.PermDailyLogsSubmit, auth.PermOverrideCutoff,
			auth.PermHarvestWrite, auth.PermHarvestSubmit, auth.PermHarvestApprove,
			auth.PermSalesWrite, auth.PermSalesTransition, auth.PermPaymentsRecord,
		}},
		{"WORKER", "Field Worker", []string{
			auth.PermDailyLogsWrite, auth.PermDailyLogsSubmit, auth.PermHarvestWrite,
		}},
	}

	for _, r := range roles {
		role := models.Role{Code: r.code, Name: r.name, IsSystem: true}
		if err := db.Where("code = ?", r.code).FirstOrCreate(&role).Error; err != nil {
			log.Fatalf("Role seed failed: %v", err)
		}
		for _, p := range r.perms {
			grant := models.RolePermission{RoleID: role.ID, Permission: p}
			if err := db.Where("role_id = ? AND permission = ?", role.ID, p).
				FirstOrCreate(&grant).Error; err != nil {
				log.Fatalf("Permission seed failed: %v", err)
			}
		}
	}

	fmt.Println("Defaults seeded")
}

func runFarmCmd() {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	db := mustConnectDB()

	switch os.Args[2] {
	case "list":
		var farms []models.Farm
		if err := db.Find(&farms).Error; err != nil {
			log.Fatalf("List failed: %v", err)
		}
		for _, f := range farms {
			fmt.Printf("%s  %-10s %s\n", f.ID, f.FarmCode, f.Name)
		}
	case "create":
		if len(os.Args) < 4 {
			log.Fatal("usage: server farm create <name>")
		}
		name := os.Args[3]
		allocator := codegen.NewAllocator()
		code, err := allocator.Allocate(codegen.FarmScope(db, name))
		if err != nil {
			log.Fatalf("Code allocation failed: %v", err)
		}
		farm := models.Farm{FarmCode: code, Name: name, Status: "ACTIVE"}
		if err := db.Create(&farm).Error; err != nil {
			log.Fatalf("Create failed: %v", err)
		}
		fmt.Printf("Created farm %s (%s)\n", farm.FarmCode, farm.ID)
	default:
		printUsage()
	}
}

func runUserCmd() {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	db := mustConnectDB()

	switch os.Args[2] {
	case "list":
		var users []models.User
		if err := db.Find(&users).Error; err != nil {
			log.Fatalf("List failed: %v", err)
		}
		for _, u := range users {
			fmt.Printf("%s  %s\n", u.ID, u.Email)
		}
	case "create":
		if len(os.Args) < 5 {
			log.Fatal("usage: server user create <email> <password>")
		}
		hash, err := auth.HashPassword(os.Args[4])
		if err != nil {
			log.Fatalf("Hash failed: %v", err)
		}
		user := models.User{Email: os.Args[3], PasswordHash: hash, IsActive: true}
		if err := db.Create(&user).Error; err != nil {
			log.Fatalf("Create failed: %v", err)
		}
		fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
	default:
		printUsage()
	}
}

func runCheckMissingLogs() {
	db := mustConnectDB()
	sweeper := alerts.NewSweeper(db)
	created, err := sweeper.Run(time.Now())
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	fmt.Printf("Created %d alert(s)\n", created)
}
