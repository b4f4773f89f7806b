// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the default organization already exists.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"makerflow/backend/internal/config"
	"makerflow/backend/internal/db"
)

const (
	adminPassword = "makerflow123"
	staffEmail    = "staff@makerflow.local"
	studentEmail  = "student@makerflow.local"
	managerEmail  = "manager@makerflow.local"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	var existing int64
	err = conn.QueryRowContext(ctx, `SELECT id FROM organizations WHERE slug = $1`, cfg.DefaultOrgSlug).Scan(&existing)
	if err == nil {
		log.Printf("Seed already applied (organization %q exists). Skipping.", cfg.DefaultOrgSlug)
		os.Exit(0)
	}
	if err != sql.ErrNoRows {
		log.Fatalf("seed check: %v", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	var orgID int64
	err = conn.QueryRowContext(ctx, `
		INSERT INTO organizations (name, slug) VALUES ($1, $2) RETURNING id`,
		"MakerFlow", cfg.DefaultOrgSlug).Scan(&orgID)
	if err != nil {
		log.Fatalf("create organization: %v", err)
	}

	adminID := createUser(ctx, conn, cfg.AdminEmail, "MakerFlow Admin", string(passwordHash), true)
	staffID := createUser(ctx, conn, staffEmail, "Sam Staff", string(passwordHash), false)
	studentID := createUser(ctx, conn, studentEmail, "Casey Student", string(passwordHash), false)
	managerID := createUser(ctx, conn, managerEmail, "Morgan Manager", string(passwordHash), false)

	createMembership(ctx, conn, adminID, orgID, "manager")
	createMembership(ctx, conn, staffID, orgID, "staff")
	createMembership(ctx, conn, studentID, orgID, "student")
	createMembership(ctx, conn, managerID, orgID, "manager")

	var projectID int64
	err = conn.QueryRowContext(ctx, `
		INSERT INTO projects (organization_id, name, description, lane, status, owner_user_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
		orgID, "Workshop Refresh", "Reorganize the main workshop floor", "Operations", "Active", managerID).Scan(&projectID)
	if err != nil {
		log.Fatalf("create project: %v", err)
	}

	for _, title := range []string{"Inventory the tool wall", "Label storage bins", "Schedule laser cutter training"} {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO tasks (organization_id, project_id, title, status, assignee_user_id, reporter_user_id)
			VALUES ($1, $2, $3, 'Todo', $4, $5)`,
			orgID, projectID, title, studentID, staffID)
		if err != nil {
			log.Fatalf("create task: %v", err)
		}
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO equipment_assets (organization_id, name, space, asset_type, status, owner_user_id)
		VALUES ($1, 'Laser Cutter A', 'Fab Lab', 'laser', 'Operational', $2)`,
		orgID, managerID)
	if err != nil {
		log.Fatalf("create equipment asset: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login: %s / %s\n", cfg.AdminEmail, adminPassword)
}

func createUser(ctx context.Context, conn *sql.DB, email, name, passwordHash string, superuser bool) int64 {
	var id int64
	err := conn.QueryRowContext(ctx, `
		INSERT INTO users (email, name, password_hash, is_active, is_superuser)
		VALUES ($1, $2, $3, TRUE, $4) RETURNING id`,
		email, name, passwordHash, superuser).Scan(&id)
	if err != nil {
		log.Fatalf("create user %s: %v", email, err)
	}
	return id
}

func createMembership(ctx context.Context, conn *sql.DB, userID, orgID int64, role string) {
	_, err := conn.ExecContext(ctx, `
		INSERT INTO memberships (user_id, organization_id, role) VALUES ($1, $2, $3)`,
		userID, orgID, role)
	if err != nil {
		log.Fatalf("create membership for user %d: %v", userID, err)
	}
}
