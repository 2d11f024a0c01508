package domain

import "testing"

func TestNotification_IsSecurityAlert(t *testing.T) {
	const marker = "SECURITY ALERT"
	base := Notification{
		ID:       "n1",
		Title:    "SECURITY ALERT: new login",
		Message:  "log out now",
		Metadata: Metadata{"requiresAction": true},
	}
	if !base.IsSecurityAlert(marker) {
		t.Fatal("expected security alert")
	}

	read := base
	read.Read = true
	if read.IsSecurityAlert(marker) {
		t.Error("read notification must not alert")
	}

	noAction := base
	noAction.Metadata = Metadata{"requiresAction": "true"}
	if noAction.IsSecurityAlert(marker) {
		t.Error("non-bool requiresAction must not alert")
	}

	plain := base
	plain.Title = "Appointment booked"
	if plain.IsSecurityAlert(marker) {
		t.Error("title without marker must not alert")
	}

	if base.IsSecurityAlert("") {
		t.Error("empty marker must never alert")
	}
}

func TestCloneList_IsolatesMetadata(t *testing.T) {
	src := []Notification{{ID: "a", Metadata: Metadata{"k": 1}}}
	cp := CloneList(src)
	cp[0].Metadata["k"] = 2
	cp[0].Read = true
	if src[0].Metadata["k"] != 1 {
		t.Error("metadata shared between clone and source")
	}
	if src[0].Read {
		t.Error("entry shared between clone and source")
	}
	if got := CloneList(nil); got == nil || len(got) != 0 {
		t.Errorf("CloneList(nil) = %v, want empty non-nil", got)
	}
}

func TestType_Valid(t *testing.T) {
	for _, typ := range []Type{TypeInfo, TypeSuccess, TypeWarning, TypeError, TypeAppointment, TypePrescription} {
		if !typ.Valid() {
			t.Errorf("%q should be valid", typ)
		}
	}
	if Type("alert").Valid() {
		t.Error("unknown type should be invalid")
	}
}

func TestDefaultPreferences(t *testing.T) {
	p := DefaultPreferences()
	if !p.Email || p.SMS || !p.AppointmentReminders || !p.PatientUpdates || !p.SystemUpdates {
		t.Errorf("DefaultPreferences = %+v", p)
	}
}
