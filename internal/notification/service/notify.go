package service

import (
	"context"
	"fmt"

	notificationdomain "medconnect/client/internal/notification/domain"
	"medconnect/client/internal/storage"
)

// LoadPreferences reads stored preferences, keeping the defaults when none are stored or the
// stored value is unreadable.
func (e *Engine) LoadPreferences(ctx context.Context) notificationdomain.Preferences {
	p := notificationdomain.DefaultPreferences()
	ok, err := storage.GetJSON(ctx, e.store, storage.KeyNotificationPreferences, &p)
	if err != nil {
		e.logger.Warn("load notification preferences failed", "error", err)
	}
	if err != nil || !ok {
		p = notificationdomain.DefaultPreferences()
	}
	e.mu.Lock()
	e.prefs = p
	e.mu.Unlock()
	return p
}

// Preferences returns the current preferences.
func (e *Engine) Preferences() notificationdomain.Preferences {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prefs
}

// SetPreferences replaces and persists the preferences.
func (e *Engine) SetPreferences(ctx context.Context, p notificationdomain.Preferences) error {
	e.mu.Lock()
	e.prefs = p
	e.mu.Unlock()
	if err := storage.SetJSON(ctx, e.store, storage.KeyNotificationPreferences, p); err != nil {
		return fmt.Errorf("persist notification preferences: %w", err)
	}
	return nil
}

func (e *Engine) NotifySuccess(ctx context.Context, title, message string) (string, bool) {
	return e.Add(ctx, notificationdomain.TypeSuccess, title, message)
}

func (e *Engine) NotifyError(ctx context.Context, title, message string) (string, bool) {
	return e.Add(ctx, notificationdomain.TypeError, title, message)
}

func (e *Engine) NotifyWarning(ctx context.Context, title, message string) (string, bool) {
	return e.Add(ctx, notificationdomain.TypeWarning, title, message)
}

func (e *Engine) NotifyInfo(ctx context.Context, title, message string) (string, bool) {
	return e.Add(ctx, notificationdomain.TypeInfo, title, message)
}

// NotifyAppointmentBooked adds a success entry when appointment reminders are enabled.
func (e *Engine) NotifyAppointmentBooked(ctx context.Context, doctorName, date, at string) (string, bool) {
	if !e.Preferences().AppointmentReminders {
		return "", false
	}
	return e.NotifySuccess(ctx, "Appointment Booked",
		fmt.Sprintf("Your appointment with Dr. %s is scheduled for %s at %s.", doctorName, date, at))
}

// NotifyAppointmentStatusChanged adds an entry typed by status (approved is success, rejected
// is error, anything else info) when appointment reminders are enabled.
func (e *Engine) NotifyAppointmentStatusChanged(ctx context.Context, status, doctorName string) (string, bool) {
	if !e.Preferences().AppointmentReminders {
		return "", false
	}
	typ := notificationdomain.TypeInfo
	switch status {
	case "approved":
		typ = notificationdomain.TypeSuccess
	case "rejected":
		typ = notificationdomain.TypeError
	}
	return e.Add(ctx, typ, "Appointment Status Updated",
		fmt.Sprintf("Your appointment with Dr. %s has been %s.", doctorName, status))
}

// NotifyPrescriptionReceived adds an info entry when patient updates are enabled.
func (e *Engine) NotifyPrescriptionReceived(ctx context.Context, doctorName string) (string, bool) {
	if !e.Preferences().PatientUpdates {
		return "", false
	}
	return e.NotifyInfo(ctx, "New Prescription",
		fmt.Sprintf("You have received a new prescription from Dr. %s.", doctorName))
}
