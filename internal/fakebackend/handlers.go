package fakebackend

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"medconnect/client/internal/backend"
	userdomain "medconnect/client/internal/user/domain"
)

const localsUser = "user"

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createBody struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// wireUser is the validate response user, keyed by _id.
type wireUser struct {
	ID     string                `json:"_id"`
	Name   string                `json:"name"`
	Email  string                `json:"email"`
	Role   userdomain.Role       `json:"role"`
	Status userdomain.UserStatus `json:"status"`
}

func (b *Backend) login(c fiber.Ctx) error {
	var body loginBody
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))

	b.mu.Lock()
	id, ok := b.byEmail[email]
	var acct account
	if ok {
		acct = *b.accounts[id]
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Info("login failed, unknown email", "email", email)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid credentials"})
	}
	if err := b.hasher.Compare(acct.passwordHash, []byte(body.Password)); err != nil {
		b.logger.Info("login failed, incorrect password", "user_id", acct.user.ID)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Incorrect password"})
	}

	switch acct.user.Status {
	case userdomain.UserStatusActive:
	case userdomain.UserStatusPending:
		if acct.user.Role == userdomain.RoleDoctor {
			b.notifyAdminsOfPendingDoctor(acct.user)
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "Account pending approval",
			"message": "Your account is waiting for admin approval. Please check back later.",
		})
	default:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "Account not approved",
			"message": "Your account has not been approved or has been deactivated. Please contact support.",
		})
	}

	token, _, err := b.issuer.Issue(acct.user.ID, string(acct.user.Role))
	if err != nil {
		b.logger.Error("issue token failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Login failed"})
	}
	b.logger.Info("login succeeded", "user_id", acct.user.ID, "role", acct.user.Role)
	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":     acct.user.ID,
			"name":   acct.user.Name,
			"role":   acct.user.Role,
			"status": acct.user.Status,
		},
	})
}

func (b *Backend) notifyAdminsOfPendingDoctor(doctor userdomain.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, a := range b.accounts {
		if a.user.Role != userdomain.RoleAdmin {
			continue
		}
		b.pushLocked(id, "warning", "Doctor Approval Needed",
			"Dr. "+doctor.Name+" attempted to login but their account is still pending approval. Please review their application.",
			map[string]any{
				"userId":         doctor.ID,
				"userRole":       string(doctor.Role),
				"userName":       doctor.Name,
				"userEmail":      doctor.Email,
				"requiresAction": true,
				"actionType":     "doctor_approval",
			})
	}
}

// authenticate rejects requests without a valid bearer token for an existing user, and
// doctors whose account is not active.
func (b *Backend) authenticate(c fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Not authorized, token missing"})
	}
	claims, err := b.issuer.Validate(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid or expired token"})
	}

	b.mu.Lock()
	a, ok := b.accounts[claims.UserID]
	var user userdomain.User
	if ok {
		user = a.user
	}
	b.mu.Unlock()
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "User not found"})
	}
	if user.Role == userdomain.RoleDoctor && user.Status != userdomain.UserStatusActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Access denied. Your account is not active. Please contact admin for assistance.",
			"status":  user.Status,
		})
	}
	c.Locals(localsUser, user)
	return c.Next()
}

func currentUser(c fiber.Ctx) userdomain.User {
	u, _ := c.Locals(localsUser).(userdomain.User)
	return u
}

func (b *Backend) logout(c fiber.Ctx) error {
	b.logger.Info("logout", "user_id", currentUser(c).ID)
	return c.JSON(fiber.Map{"success": true, "message": "Logged out successfully"})
}

func (b *Backend) validate(c fiber.Ctx) error {
	u := currentUser(c)
	return c.JSON(fiber.Map{
		"valid": true,
		"user":  wireUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Status: u.Status},
	})
}

func queryInt(c fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func (b *Backend) listNotifications(c fiber.Ctx) error {
	userID := currentUser(c).ID
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	unreadOnly := c.Query("unreadOnly") == "true"

	b.mu.Lock()
	all := b.notifications[userID]
	matched := make([]backend.Notification, 0, len(all))
	unread := 0
	for _, n := range all {
		if !n.Read {
			unread++
		}
		if unreadOnly && n.Read {
			continue
		}
		matched = append(matched, n)
	}
	b.mu.Unlock()

	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))
	return c.JSON(backend.NotificationPage{
		Notifications: matched[start:end],
		UnreadCount:   unread,
		CurrentPage:   page,
		TotalPages:    int(math.Ceil(float64(len(matched)) / float64(limit))),
	})
}

func (b *Backend) createNotification(c fiber.Ctx) error {
	var body createBody
	if err := c.Bind().JSON(&body); err != nil || body.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to create notification"})
	}
	b.mu.Lock()
	n := b.pushLocked(currentUser(c).ID, body.Type, body.Title, body.Message, nil)
	b.mu.Unlock()
	return c.Status(fiber.StatusCreated).JSON(n)
}

func (b *Backend) markRead(c fiber.Ctx) error {
	userID, id := currentUser(c).ID, c.Params("id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications[userID] {
		if b.notifications[userID][i].ID == id {
			b.notifications[userID][i].Read = true
			return c.JSON(fiber.Map{"message": "Notification marked as read", "notification": b.notifications[userID][i]})
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
}

func (b *Backend) markAllRead(c fiber.Ctx) error {
	userID := currentUser(c).ID
	b.mu.Lock()
	for i := range b.notifications[userID] {
		b.notifications[userID][i].Read = true
	}
	b.mu.Unlock()
	return c.JSON(fiber.Map{"message": "All notifications marked as read"})
}

func (b *Backend) deleteNotification(c fiber.Ctx) error {
	userID, id := currentUser(c).ID, c.Params("id")
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.notifications[userID]
	for i := range list {
		if list[i].ID == id {
			b.notifications[userID] = append(list[:i:i], list[i+1:]...)
			return c.JSON(fiber.Map{"message": "Notification deleted", "deletedId": id})
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
}

func (b *Backend) deleteAllNotifications(c fiber.Ctx) error {
	userID := currentUser(c).ID
	b.mu.Lock()
	deleted := len(b.notifications[userID])
	delete(b.notifications, userID)
	b.mu.Unlock()
	return c.JSON(fiber.Map{"message": "Deleted " + strconv.Itoa(deleted) + " notifications"})
}
