package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/autosched/fieldtrack/internal/api"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding login body: %v", err)
		}
		if body["username"] != "worker" || body["password"] != "secret" {
			t.Errorf("credentials = %v", body)
		}
		json.NewEncoder(w).Encode(api.LoginResponse{
			User:       api.User{ID: "u1", Username: "worker"},
			SessionID:  "sess-1",
			EmployeeID: "emp-1",
		})
	}))
	defer srv.Close()

	client := api.NewClient(context.Background(), srv.URL, "")
	resp, err := client.Login(context.Background(), "worker", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.User.ID != "u1" || resp.SessionID != "sess-1" || resp.EmployeeID != "emp-1" {
		t.Errorf("Login response = %+v", resp)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := api.NewClient(context.Background(), srv.URL, "")
	if _, err := client.Login(context.Background(), "worker", "wrong"); err == nil {
		t.Fatal("expected error for 401 response, got nil")
	}
}

func TestBearerAttached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization header = %q, want %q", got, "Bearer tok-123")
		}
		json.NewEncoder(w).Encode([]api.LocationRecord{})
	}))
	defer srv.Close()

	client := api.NewClient(context.Background(), srv.URL, "tok-123")
	if _, err := client.UserLocations(context.Background(), "u1"); err != nil {
		t.Fatalf("UserLocations: %v", err)
	}
}

func TestFindScheduleSortsJobOrders(t *testing.T) {
	two := 2
	one := 1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("scheduleId"); got != "s1" {
			t.Errorf("scheduleId = %q", got)
		}
		json.NewEncoder(w).Encode(api.ScheduleDetails{
			ID: "s1",
			JobOrders: []api.JobOrder{
				{ID: "late", ScheduledOrder: &two},
				{ID: "early", ScheduledOrder: &one},
				{ID: "unset"},
			},
		})
	}))
	defer srv.Close()

	client := api.NewClient(context.Background(), srv.URL, "")
	details, err := client.FindSchedule(context.Background(), "s1", "emp-1")
	if err != nil {
		t.Fatalf("FindSchedule: %v", err)
	}

	want := []string{"unset", "early", "late"}
	for i, id := range want {
		if details.JobOrders[i].ID != id {
			t.Errorf("JobOrders[%d].ID = %q, want %q", i, details.JobOrders[i].ID, id)
		}
	}
}

func TestUpdateLocation(t *testing.T) {
	var got api.LocationSample
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/update-location" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding sample: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	client := api.NewClient(context.Background(), srv.URL, "")
	sample := api.LocationSample{
		UserID: "u1", Latitude: 51.5, Longitude: -0.12, ScheduleID: "s1", OrgID: "o1",
	}
	if err := client.UpdateLocation(context.Background(), sample); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if got != sample {
		t.Errorf("server received %+v, want %+v", got, sample)
	}
}

func TestServerErrorIncludesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := api.NewClient(context.Background(), srv.URL, "")
	_, err := client.LoadOrganizations(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
}
