package mockapi

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Member is a team member.
type Member struct {
	ID         string `yaml:"id"`
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	Email      string `yaml:"email"`
	Role       string `yaml:"role"`
	Status     string `yaml:"status"`
	Hidden     bool   `yaml:"hidden"`
	OrderIndex int    `yaml:"order_index"`
	BirthDate  string `yaml:"birth_date"`
}

// Entry is one member's availability on one date.
type Entry struct {
	ID       string `yaml:"id"`
	MemberID string `yaml:"member_id"`
	Date     string `yaml:"date"`
	Status   string `yaml:"status"`
}

// Team is a team with its members and availability entries.
type Team struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Slug       string `yaml:"slug"`
	InviteCode string `yaml:"invite_code"`
	// Password is the plain team password; PasswordHash is derived from it
	// when not set explicitly.
	Password     string   `yaml:"password"`
	PasswordHash string   `yaml:"password_hash"`
	CreatedAt    string   `yaml:"created_at"`
	Members      []Member `yaml:"members"`
	Availability []Entry  `yaml:"availability"`
}

// Protected reports whether the team requires a password.
func (t *Team) Protected() bool {
	return t.PasswordHash != ""
}

// Fixture is the in-memory data set the mock server answers from.
// It is read-only once handed to a Server.
type Fixture struct {
	Teams []Team `yaml:"teams"`
}

// Lookup finds a team by invite code, then by slug.
func (f *Fixture) Lookup(code string) (*Team, bool) {
	for i := range f.Teams {
		if f.Teams[i].InviteCode == code {
			return &f.Teams[i], true
		}
	}
	for i := range f.Teams {
		if f.Teams[i].Slug != "" && f.Teams[i].Slug == code {
			return &f.Teams[i], true
		}
	}
	return nil, false
}

// HashPassword encodes a password the way the availability API stores it.
func HashPassword(password string) string {
	return base64.StdEncoding.EncodeToString([]byte(password))
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	if len(f.Teams) == 0 {
		return nil, fmt.Errorf("fixture must define at least one team")
	}
	for i := range f.Teams {
		t := &f.Teams[i]
		if t.InviteCode == "" && t.Slug == "" {
			return nil, fmt.Errorf("team[%d]: invite_code or slug is required", i)
		}
		if t.PasswordHash == "" && t.Password != "" {
			t.PasswordHash = HashPassword(t.Password)
		}
	}
	return &f, nil
}

// DefaultFixture returns a small data set centered on today: an open team
// with invite code TEAM123 and a password-protected team BRAVO42
// (password "letmein").
func DefaultFixture(today time.Time) *Fixture {
	statuses := []string{"available", "unavailable", "maybe"}
	alphaMembers := []Member{
		{ID: "m-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: "admin", Status: "active", OrderIndex: 0},
		{ID: "m-2", FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", Role: "member", Status: "active", OrderIndex: 1},
		{ID: "m-3", FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Role: "member", Status: "inactive", Hidden: true, OrderIndex: 2},
	}
	var entries []Entry
	n := 0
	for d := -3; d <= 3; d++ {
		date := today.AddDate(0, 0, d).Format("2006-01-02")
		for i, m := range alphaMembers[:2] {
			n++
			entries = append(entries, Entry{
				ID:       fmt.Sprintf("a-%d", n),
				MemberID: m.ID,
				Date:     date,
				Status:   statuses[(d+3+i)%len(statuses)],
			})
		}
	}

	return &Fixture{Teams: []Team{
		{
			ID:           "team-1",
			Name:         "Alpha",
			Slug:         "alpha",
			InviteCode:   "TEAM123",
			CreatedAt:    "2025-01-06T08:00:00Z",
			Members:      alphaMembers,
			Availability: entries,
		},
		{
			ID:           "team-2",
			Name:         "Bravo",
			Slug:         "bravo",
			InviteCode:   "BRAVO42",
			PasswordHash: HashPassword("letmein"),
			CreatedAt:    "2025-03-03T08:00:00Z",
			Members: []Member{
				{ID: "m-10", FirstName: "Edsger", LastName: "Dijkstra", Email: "edsger@example.com", Role: "admin", Status: "active"},
			},
		},
	}}
}
