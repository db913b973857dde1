package models

import "testing"

func TestValidateRoles(t *testing.T) {
	if !ValidateRoles([]string{"ADMIN", "LECTURE"}) {
		t.Error("Expected ADMIN+LECTURE to validate")
	}
	if ValidateRoles([]string{"ADMIN", "superuser"}) {
		t.Error("Expected unknown role to fail validation")
	}
	if ValidateRoles(nil) {
		t.Error("Expected empty role list to fail validation")
	}
}

func TestHasAnyRole(t *testing.T) {
	u := User{Roles: []string{"GESTIONNAIRE"}}
	if !u.HasAnyRole("ADMIN", "GESTIONNAIRE") {
		t.Error("Expected GESTIONNAIRE to match")
	}
	if u.HasAnyRole("ADMIN") {
		t.Error("Did not expect ADMIN to match")
	}
}

func TestRedactedDropsPasswordHash(t *testing.T) {
	u := User{ID: 1, Email: "a@b.c", PasswordHash: "hash", Roles: []string{"ADMIN"}}
	r := u.Redacted()
	if r.PasswordHash != "" {
		t.Error("Expected password hash to be dropped")
	}
	if r.Email != u.Email || r.ID != u.ID {
		t.Error("Expected identity fields to survive redaction")
	}
}

func TestGetDisplayName(t *testing.T) {
	first, last := "Marie", "Durand"
	u := User{Email: "marie@parc.local", FirstName: &first, LastName: &last}
	if got := u.GetDisplayName(); got != "Marie Durand" {
		t.Errorf("Expected 'Marie Durand', got %q", got)
	}

	u = User{Email: "marie@parc.local"}
	if got := u.GetDisplayName(); got != "marie@parc.local" {
		t.Errorf("Expected email fallback, got %q", got)
	}
}
