// seed inserts development sample data for local testing. Run via go run ./cmd/seed.
// Idempotent: skips inserts if the dev owner (owner@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"pawplanner/backend/internal/config"
	"pawplanner/backend/internal/db"
	orgdomain "pawplanner/backend/internal/organization/domain"
	orgrepo "pawplanner/backend/internal/organization/repository"
	userdomain "pawplanner/backend/internal/user/domain"
	userrepo "pawplanner/backend/internal/user/repository"
)

const (
	devOrgID      = "dev-org-001"
	devOwnerEmail = "owner@example.com"
	adminEmail    = "admin@example.com"
	memberEmail   = "member@example.com"
	opsEmail      = "ops@example.com"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("seed: refusing to run with APP_ENV=production")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	orgs := orgrepo.NewPostgresRepository(conn)
	users := userrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, devOwnerEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", devOwnerEmail)
		return
	}

	now := time.Now().UTC()
	orgList := []*orgdomain.Org{{ID: devOrgID, Name: "Happy Paws Grooming"}}
	if cfg.SuperOrgID != "" {
		orgList = append(orgList, &orgdomain.Org{ID: cfg.SuperOrgID, Name: "PawPlanner Operations"})
	}
	for _, o := range orgList {
		o.Status, o.CreatedAt = orgdomain.OrgStatusActive, now
		if err := orgs.CreateOrganization(ctx, o); err != nil {
			log.Fatalf("create org %s: %v", o.ID, err)
		}
	}

	userList := []*userdomain.User{
		{OrgID: devOrgID, Role: userdomain.RoleOwner, Name: "Dev Owner", Email: devOwnerEmail},
		{OrgID: devOrgID, Role: userdomain.RoleAdmin, Name: "Dev Admin", Email: adminEmail},
		{OrgID: devOrgID, Role: userdomain.RoleMember, Name: "Dev Groomer", Email: memberEmail},
	}
	if cfg.SuperOrgID != "" {
		userList = append(userList, &userdomain.User{OrgID: cfg.SuperOrgID, Role: userdomain.RoleOwner, Name: "Ops", Email: opsEmail})
	}
	if cfg.TestAccountEmail != "" {
		userList = append(userList, &userdomain.User{OrgID: devOrgID, Role: userdomain.RoleMember, Name: "App Review", Email: cfg.TestAccountEmail})
	}
	for _, u := range userList {
		u.ID = uuid.NewString()
		u.Timezone = "Europe/Berlin"
		u.CreatedAt, u.UpdatedAt = now, now
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", u.Email, err)
		}
	}

	log.Println("Seed completed successfully.")
	for _, u := range userList {
		fmt.Printf("  %-28s %s (%s)\n", u.Email, u.Role, u.OrgID)
	}
	fmt.Println("Sign in with a magic link or verification code.")
	if cfg.OTPReturnToClient {
		fmt.Printf("Sent codes are listed at %s/dev/otp.\n", cfg.AppBaseURL)
	}
}
