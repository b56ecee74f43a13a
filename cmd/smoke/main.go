package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// smoke drives a running instance end to end: gRPC health, citizen sign-up,
// a geo-routed complaint and the owner notification it produces.
func main() {
	base := os.Getenv("SPCS_SMOKE_URL")
	if base == "" {
		base = "http://localhost:5175"
	}
	grpcAddr := os.Getenv("SPCS_SMOKE_GRPC_ADDR")
	if grpcAddr == "" {
		grpcAddr = "localhost:9091"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial grpc at %s: %v", grpcAddr, err)
	}
	defer conn.Close()
	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: "spcs-api"})
	if err != nil {
		log.Fatalf("health check: %v", err)
	}
	if hc.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		log.Fatalf("service not serving: %s", hc.GetStatus())
	}

	c := client{base: base, http: &http.Client{Timeout: 5 * time.Second}}
	email := fmt.Sprintf("smoke-%s@example.org", uuid.NewString()[:8])

	var session struct {
		Token string `json:"token"`
	}
	c.must(ctx, http.MethodPost, "/auth/register", map[string]any{
		"username": "smoke", "email": email, "password": "smoke-pass", "phone": "9876543210",
	}, &session)
	c.token = session.Token

	var created struct {
		Complaint struct {
			ID      string `json:"id"`
			Station string `json:"station"`
			Status  string `json:"status"`
		} `json:"complaint"`
	}
	c.must(ctx, http.MethodPost, "/complaints", map[string]any{
		"title":       "Smoke check",
		"description": "Automated end-to-end check",
		"location":    map[string]any{"lat": 19.0634, "lng": 72.9981, "address": "Sector 17, Vashi"},
	}, &created)
	if created.Complaint.Station == "" || created.Complaint.Station == "Unassigned" {
		log.Fatalf("complaint was not routed: %+v", created.Complaint)
	}

	var notes struct {
		Notifications []struct {
			ComplaintID string `json:"complaintId"`
		} `json:"notifications"`
	}
	c.must(ctx, http.MethodGet, "/notifications", nil, &notes)
	if len(notes.Notifications) == 0 || notes.Notifications[0].ComplaintID != created.Complaint.ID {
		log.Fatalf("owner notification missing for %s", created.Complaint.ID)
	}

	c.must(ctx, http.MethodDelete, "/profile", map[string]any{"password": "smoke-pass"}, nil)

	fmt.Printf("smoke test passed: complaint=%s station=%s\n", created.Complaint.ID, created.Complaint.Station)
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c client) must(ctx context.Context, method, path string, body, out any) {
	rd := bytes.NewReader(nil)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			log.Fatalf("%s %s: %v", method, path, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		log.Fatalf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}
