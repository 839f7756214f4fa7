package testsupport

import (
	"context"
	"testing"

	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/store"
)

// Seed describes directory contents to load into a store. Memberships and
// task owners refer to users and groups by their position in Users and
// Groups, starting at 1, which matches the ids a fresh store assigns.
type Seed struct {
	Users       []model.CreateUserRequest  `json:"users"`
	Groups      []model.CreateGroupRequest `json:"groups"`
	Memberships []Membership               `json:"memberships"`
	Tasks       []model.CreateTaskRequest  `json:"tasks"`
}

type Membership struct {
	User  int64 `json:"user"`
	Group int64 `json:"group"`
}

// Seeded holds the records written by SeedStore.
type Seeded struct {
	Users  []model.User
	Groups []model.Group
	Tasks  []model.Task
}

// LoadSeed reads a Seed from a JSON fixture.
func LoadSeed(t *testing.T, path string) Seed {
	t.Helper()

	var seed Seed
	LoadFixtureJSON(t, path, &seed)
	return seed
}

// SeedStore writes seed into s directly, bypassing the services and their
// caches.
func SeedStore(t *testing.T, s store.Store, seed Seed) Seeded {
	t.Helper()
	ctx := context.Background()

	var out Seeded
	for _, req := range seed.Users {
		u, err := s.Users().Save(ctx, req.ToEntity())
		if err != nil {
			t.Fatalf("failed to seed user %s: %v", req.Email, err)
		}
		out.Users = append(out.Users, u)
	}
	for _, req := range seed.Groups {
		g, err := s.Groups().Save(ctx, req.ToEntity())
		if err != nil {
			t.Fatalf("failed to seed group %s: %v", req.Name, err)
		}
		out.Groups = append(out.Groups, g)
	}
	for _, m := range seed.Memberships {
		if err := s.Memberships().Add(ctx, m.User, m.Group); err != nil {
			t.Fatalf("failed to seed membership %d/%d: %v", m.User, m.Group, err)
		}
	}
	for _, req := range seed.Tasks {
		task, err := s.Tasks().Save(ctx, req.ToEntity())
		if err != nil {
			t.Fatalf("failed to seed task %s: %v", req.Title, err)
		}
		out.Tasks = append(out.Tasks, task)
	}
	return out
}
