package consul

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeAgent records agent service calls.
type fakeAgent struct {
	mu           sync.Mutex
	registered   map[string]any
	deregistered []string
	token        string
}

func (f *fakeAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.token = r.Header.Get("X-Consul-Token")

	switch {
	case r.Method == http.MethodPut && r.URL.Path == "/v1/agent/service/register":
		if err := json.NewDecoder(r.Body).Decode(&f.registered); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/v1/agent/service/deregister/"):
		f.deregistered = append(f.deregistered, strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestNewInstance(t *testing.T) {
	inst := NewInstance("cellfinder-api", "api-1", 3000, "cells", "api")

	if inst.ID() != "cellfinder-api-api-1" {
		t.Errorf("Expected ID cellfinder-api-api-1, got %s", inst.ID())
	}
	if inst.HealthURL() != "http://api-1:3000/health" {
		t.Errorf("Unexpected health URL %s", inst.HealthURL())
	}

	check := inst.registration().Check
	if check == nil || check.Interval != "10s" || check.Timeout != "3s" || check.DeregisterCriticalServiceAfter != "1m0s" {
		t.Errorf("Unexpected check %+v", check)
	}
}

func TestInstance_NoHealthPath(t *testing.T) {
	inst := NewInstance("cellfinder-api", "api-1", 3000)
	inst.HealthPath = ""

	if inst.registration().Check != nil {
		t.Error("Expected no check without a health path")
	}
}

func TestRegisterAndDeregister(t *testing.T) {
	agent := &fakeAgent{}
	srv := httptest.NewServer(agent)
	defer srv.Close()

	registrar, err := NewRegistrar(strings.TrimPrefix(srv.URL, "http://"), "acl-token")
	if err != nil {
		t.Fatalf("NewRegistrar failed: %v", err)
	}

	inst := NewInstance("cellfinder-api", "localhost", 3000, "cells")
	inst.Meta = map[string]string{"version": "test"}

	if err := registrar.Register(context.Background(), inst); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	agent.mu.Lock()
	if agent.registered["ID"] != "cellfinder-api-localhost" || agent.registered["Name"] != "cellfinder-api" {
		t.Errorf("Unexpected registration %+v", agent.registered)
	}
	check, _ := agent.registered["Check"].(map[string]any)
	if check["HTTP"] != "http://localhost:3000/health" {
		t.Errorf("Unexpected check %+v", check)
	}
	if agent.token != "acl-token" {
		t.Errorf("Expected ACL token to be sent, got %q", agent.token)
	}
	agent.mu.Unlock()

	if err := registrar.Deregister(context.Background(), inst.ID()); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	if len(agent.deregistered) != 1 || agent.deregistered[0] != inst.ID() {
		t.Errorf("Unexpected deregistrations %v", agent.deregistered)
	}
}

func TestRegister_AgentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	registrar, err := NewRegistrar(strings.TrimPrefix(srv.URL, "http://"), "")
	if err != nil {
		t.Fatalf("NewRegistrar failed: %v", err)
	}

	if err := registrar.Register(context.Background(), NewInstance("cellfinder-api", "localhost", 3000)); err == nil {
		t.Error("Expected error from failing agent")
	}
}
