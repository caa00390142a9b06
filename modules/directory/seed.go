package directory

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Demo seed data, matching the demo organization the product ships with.
const demoOrganizationID = "demo-org"

var demoUsers = []struct {
	Username string
	Email    string
	Password string
}{
	{Username: "alice", Email: "alice@demo.example", Password: "demo1234"},
	{Username: "bob", Email: "bob@demo.example", Password: "demo1234"},
	{Username: "carol", Email: "carol@demo.example", Password: "demo1234"},
}

// seedDemoOrganization creates the demo accounts on first start. A non-empty
// users table means a previous run already seeded (or real data exists).
func (m *Module) seedDemoOrganization() error {
	count, err := m.repo.CountUsers()
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	for _, du := range demoUsers {
		hash, err := m.hasher.Hash(du.Password)
		if err != nil {
			return fmt.Errorf("failed to hash demo password: %w", err)
		}
		user := &User{
			ID:             uuid.New().String(),
			Username:       du.Username,
			Email:          du.Email,
			PasswordHash:   hash,
			OrganizationID: demoOrganizationID,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := m.repo.CreateUser(user); err != nil {
			return err
		}
	}

	log.Printf("[directory] Seeded demo organization with %d users", len(demoUsers))
	return nil
}
