package domain

import (
	"encoding/json"
	"testing"
)

func TestDashboardPath(t *testing.T) {
	cases := []struct {
		role Role
		want string
	}{
		{RolePatient, "/dashboard"},
		{RoleDoctor, "/doctor/dashboard"},
		{RoleAdmin, "/admin/dashboard"},
		{Role("nurse"), "/unauthorized"},
		{Role(""), "/unauthorized"},
	}
	for _, c := range cases {
		if got := DashboardPath(c.role); got != c.want {
			t.Errorf("DashboardPath(%q) = %q, want %q", c.role, got, c.want)
		}
	}
}

func TestUser_UnmarshalJSON_MongoID(t *testing.T) {
	var u User
	raw := `{"_id":"u-1","name":"Ana","email":"ana@x.com","role":"doctor","status":"pending"}`
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if u.ID != "u-1" {
		t.Errorf("ID = %q, want %q", u.ID, "u-1")
	}
	if u.Role != RoleDoctor {
		t.Errorf("Role = %q, want %q", u.Role, RoleDoctor)
	}
	if u.Status != UserStatusPending {
		t.Errorf("Status = %q, want %q", u.Status, UserStatusPending)
	}
}

func TestUser_UnmarshalJSON_PrefersID(t *testing.T) {
	var u User
	if err := json.Unmarshal([]byte(`{"id":"a","_id":"b","role":"admin"}`), &u); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if u.ID != "a" {
		t.Errorf("ID = %q, want %q", u.ID, "a")
	}
}

func TestUser_Validate(t *testing.T) {
	var nilUser *User
	if err := nilUser.Validate(); err == nil {
		t.Error("nil user should not validate")
	}
	if err := (&User{Role: RolePatient}).Validate(); err == nil {
		t.Error("user without id should not validate")
	}
	if err := (&User{ID: "u"}).Validate(); err == nil {
		t.Error("user without role should not validate")
	}
	if err := (&User{ID: "u", Role: RolePatient}).Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
