package domain

// Preferences gate the typed notify helpers. Stored under the notificationPreferences key.
type Preferences struct {
	Email                bool `json:"email"`
	SMS                  bool `json:"sms"`
	AppointmentReminders bool `json:"appointmentReminders"`
	PatientUpdates       bool `json:"patientUpdates"`
	SystemUpdates        bool `json:"systemUpdates"`
}

// DefaultPreferences returns the preferences used when none are stored.
func DefaultPreferences() Preferences {
	return Preferences{
		Email:                true,
		SMS:                  false,
		AppointmentReminders: true,
		PatientUpdates:       true,
		SystemUpdates:        true,
	}
}
