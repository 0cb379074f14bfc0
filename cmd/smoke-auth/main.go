// smoke-auth drives one full session lifecycle against the mock auth
// service (or a real API when CASARO_API_URL is set): login, persisted
// restore, guard checks, refresh, logout.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"casaro.io/internal/auth"
	"casaro.io/internal/authsvc"
	"casaro.io/internal/config"
	"casaro.io/internal/guard"
	"casaro.io/internal/session"
)

func main() {
	log.SetFlags(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var svc authsvc.Service
	if apiURL := os.Getenv("CASARO_API_URL"); apiURL != "" {
		svc = authsvc.NewClient(apiURL)
	} else {
		mock, err := authsvc.NewMock(authsvc.WithDelay(50 * time.Millisecond))
		if err != nil {
			log.Fatalf("mock: %v", err)
		}
		svc = mock
	}

	var storage session.Storage
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		storage, err = session.NewRedisStorage(client, "casaro:session:smoke")
	} else {
		storage, err = session.NewFileStorage(filepath.Join(os.TempDir(), "casaro-smoke", "session.json"))
	}
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mgr, err := session.NewManager(svc, storage)
	if err != nil {
		log.Fatalf("manager: %v", err)
	}
	mgr.Initialize(ctx)
	mgr.Logout(ctx) // start from a clean slate

	if d := mgr.EnterRoute(guard.RequireRole(auth.RoleAgent), "/agent/dashboard"); d.Action != guard.ActionRedirect || d.Target != guard.LoginPath {
		log.Fatalf("anonymous guard check failed: %+v", d)
	}

	id, err := mgr.Login(ctx, "agent@demo.com", "demo1234")
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	if !mgr.HasPermission(auth.PermManageListings) {
		log.Fatal("agent should hold properties.manage")
	}
	if mgr.HasPermission(auth.PermManageUsers) {
		log.Fatal("agent must not hold users.manage")
	}
	if d := mgr.EnterRoute(guard.RequireRole(auth.RoleAdmin), "/admin/users"); d.Action != guard.ActionRedirect || d.Target != "/agent/dashboard" {
		log.Fatalf("role mismatch guard check failed: %+v", d)
	}

	// Simulated reload: a second manager over the same storage.
	restored, err := session.NewManager(svc, storage)
	if err != nil {
		log.Fatalf("manager: %v", err)
	}
	restored.Initialize(ctx)
	restoredID, ok := restored.Identity()
	if !ok || restoredID.Email != id.Email {
		log.Fatalf("restore failed: %+v ok=%v", restoredID, ok)
	}

	if err := restored.RefreshSession(ctx); err != nil {
		log.Fatalf("refresh: %v", err)
	}
	if !restored.CheckSessionValidity() {
		log.Fatal("session invalid after refresh")
	}

	restored.Logout(ctx)
	if restored.CheckSessionValidity() {
		log.Fatal("session survived logout")
	}
	final, err := session.NewManager(svc, storage)
	if err != nil {
		log.Fatalf("manager: %v", err)
	}
	final.Initialize(ctx)
	if _, ok := final.Identity(); ok {
		log.Fatal("logout did not clear storage")
	}

	fmt.Printf("✅ auth smoke test passed: user=%s role=%s\n", id.Email, id.Role)
}
