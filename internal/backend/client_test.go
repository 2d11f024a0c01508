package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	notificationdomain "medconnect/client/internal/notification/domain"
	userdomain "medconnect/client/internal/user/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_Defaults(t *testing.T) {
	c := New("http://localhost:5000/")
	if c.BaseURL != "http://localhost:5000" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", c.BaseURL)
	}
	if c.HTTPClient == nil || c.HTTPClient.Timeout != defaultTimeout {
		t.Errorf("HTTPClient timeout = %v, want %v", c.HTTPClient.Timeout, defaultTimeout)
	}
	if c := New("http://x", WithTimeout(0)); c.HTTPClient.Timeout != 0 {
		t.Errorf("WithTimeout(0) = %v, want 0", c.HTTPClient.Timeout)
	}
}

func TestLogin_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not send a bearer token")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.c" || body["password"] != "pw" {
			t.Errorf("body = %v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "tok",
			"user":  map[string]string{"id": "u1", "name": "Ann", "role": "doctor", "status": "active"},
		})
	})

	res, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != "tok" || res.User.ID != "u1" || res.User.Role != userdomain.RoleDoctor {
		t.Errorf("Login = %+v", res)
	}
}

func TestLogin_ErrorStatuses(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    map[string]string
		wantMsg string
		is401   bool
		is403   bool
		trans   bool
	}{
		{"bad credentials", 400, map[string]string{"error": "Invalid credentials"}, "Invalid credentials", false, false, false},
		{"wrong password", 401, map[string]string{"error": "Incorrect password"}, "Incorrect password", true, false, false},
		{"pending", 403, map[string]string{"error": "Account pending approval", "message": "Your account is waiting for admin approval."}, "Your account is waiting for admin approval.", false, true, false},
		{"server", 500, map[string]string{"error": "Login failed"}, "Login failed", false, false, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})
			_, err := c.Login(context.Background(), "a@b.c", "pw")
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *StatusError", err)
			}
			if se.StatusCode != tc.status || se.Message != tc.wantMsg {
				t.Errorf("StatusError = %+v, want %d %q", se, tc.status, tc.wantMsg)
			}
			if IsUnauthorized(err) != tc.is401 {
				t.Errorf("IsUnauthorized = %v, want %v", IsUnauthorized(err), tc.is401)
			}
			if errors.Is(err, ErrForbidden) != tc.is403 {
				t.Errorf("Is(ErrForbidden) = %v, want %v", errors.Is(err, ErrForbidden), tc.is403)
			}
			if IsTransient(err) != tc.trans {
				t.Errorf("IsTransient = %v, want %v", IsTransient(err), tc.trans)
			}
			if StatusCode(err) != tc.status {
				t.Errorf("StatusCode = %d, want %d", StatusCode(err), tc.status)
			}
		})
	}
}

func TestLogin_MalformedResponse(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"not json", "<html>"},
		{"empty", ""},
		{"no token", `{"user":{"id":"u1","role":"patient"}}`},
		{"no user id", `{"token":"t","user":{"role":"patient"}}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			if _, err := c.Login(context.Background(), "a", "b"); !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("err = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/validate" || r.Method != http.MethodGet {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			writeJSON(w, 200, map[string]any{"valid": true, "user": map[string]string{"_id": "u1", "name": "Ann", "email": "a@b.c", "role": "patient", "status": "active"}})
		case "Bearer invalid-body":
			writeJSON(w, 200, map[string]any{"valid": false})
		default:
			writeJSON(w, 401, map[string]string{"message": "Invalid or expired token"})
		}
	})

	u, err := c.Validate(context.Background(), "good")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if u.ID != "u1" || u.Email != "a@b.c" {
		t.Errorf("user = %+v, want _id mapped to ID", u)
	}
	if _, err := c.Validate(context.Background(), "bad"); !IsUnauthorized(err) {
		t.Errorf("bad token err = %v, want unauthorized", err)
	}
	if _, err := c.Validate(context.Background(), "invalid-body"); !IsUnauthorized(err) {
		t.Errorf("valid=false err = %v, want unauthorized", err)
	}
}

func TestListNotifications(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		writeJSON(w, 200, map[string]any{
			"notifications": []map[string]any{
				{"_id": "n1", "type": "warning", "title": "SECURITY ALERT: login", "message": "m", "read": false, "createdAt": created, "data": map[string]any{"requiresAction": true}},
				{"_id": "n2", "type": "bogus", "title": "t", "message": "m", "read": true, "createdAt": created},
			},
			"unreadCount": 1,
		})
	})

	page, err := c.ListNotifications(context.Background(), "tok", ListOptions{Limit: 50})
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if page.UnreadCount != 1 {
		t.Errorf("UnreadCount = %d, want 1", page.UnreadCount)
	}
	list := page.Domain()
	if len(list) != 2 || list[0].ID != "n1" || list[1].ID != "n2" {
		t.Fatalf("list = %+v", list)
	}
	if !list[0].Timestamp.Equal(created) || !list[0].Metadata.RequiresAction() {
		t.Errorf("n1 = %+v", list[0])
	}
	if list[1].Type != notificationdomain.TypeInfo {
		t.Errorf("unknown type = %q, want info", list[1].Type)
	}
}

func TestNotificationMutations(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost {
			var body CreateNotificationRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, 201, map[string]any{"_id": "srv1", "title": body.Title, "message": body.Message, "type": body.Type})
			return
		}
		writeJSON(w, 200, map[string]string{"message": "ok"})
	})
	ctx := context.Background()

	n, err := c.CreateNotification(ctx, "tok", CreateNotificationRequest{Title: "t", Message: "m", Type: "info"})
	if err != nil || n.ID != "srv1" {
		t.Fatalf("CreateNotification = %+v, %v", n, err)
	}
	if err := c.MarkRead(ctx, "tok", "n 1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := c.MarkAllRead(ctx, "tok"); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if err := c.DeleteNotification(ctx, "tok", "n2"); err != nil {
		t.Fatalf("DeleteNotification: %v", err)
	}
	if err := c.DeleteAllNotifications(ctx, "tok"); err != nil {
		t.Fatalf("DeleteAllNotifications: %v", err)
	}
	if err := c.Logout(ctx, "tok"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	want := []string{
		"POST /api/notifications",
		"PUT /api/notifications/n 1/read",
		"PUT /api/notifications/mark-all-read",
		"DELETE /api/notifications/n2",
		"DELETE /api/notifications",
		"POST /api/auth/logout",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("requests =\n%v\nwant\n%v", got, want)
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url)
	err := c.MarkAllRead(context.Background(), "tok")
	if !errors.Is(err, ErrTransport) || !IsTransient(err) {
		t.Errorf("err = %v, want transient ErrTransport", err)
	}
	if IsUnauthorized(err) {
		t.Error("transport failure must not look like 401")
	}
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Logout(ctx, "tok")
	if !errors.Is(err, ErrTransport) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want ErrTransport wrapping context.Canceled", err)
	}
}
