package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJoinRoomRoundTrip(t *testing.T) {
	var gotPath, gotMethod, gotContentType string
	var gotBody JoinRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(JoinResponse{
			RoomID: "R1",
			UserID: "u-1",
			WSURL:  "ws://example.test/ws",
			Token:  "tok",
			ICEServers: []ICEServer{
				{URLs: []string{"stun:stun.example.test:3478"}},
			},
		})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).JoinRoom(context.Background(), "R1", JoinRequest{
		Display:    "Alice",
		CreatorKey: "ck",
	})
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/rooms/R1/join" {
		t.Errorf("request = %s %s, want POST /rooms/R1/join", gotMethod, gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}
	if gotBody.Display != "Alice" || gotBody.CreatorKey != "ck" {
		t.Errorf("request body = %+v", gotBody)
	}
	if resp.UserID != "u-1" || resp.WSURL != "ws://example.test/ws" {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.ICEServers) != 1 {
		t.Errorf("ice servers = %+v", resp.ICEServers)
	}
}

func TestStatusErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "room expired"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetRoom(context.Background(), "gone")
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if status.Status != 404 || status.Message != "room expired" {
		t.Fatalf("status error = %+v", status)
	}
	if status.Error() != "api status 404: room expired" {
		t.Fatalf("Error() = %q", status.Error())
	}
}

func TestStatusErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetMediaStatus(context.Background())
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if status.Status != 502 || status.Message != "" {
		t.Fatalf("status error = %+v", status)
	}
	if status.Error() != "api status 502" {
		t.Fatalf("Error() = %q", status.Error())
	}
}

func TestLeaveRoomSendsUserID(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).LeaveRoom(context.Background(), "R1", "u-1"); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if got["user_id"] != "u-1" {
		t.Fatalf("leave body = %+v", got)
	}
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(srv.URL).GetRoom(ctx, "R1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
