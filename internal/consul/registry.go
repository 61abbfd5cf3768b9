// Package consul announces the API to a HashiCorp Consul agent so the
// deployment can discover and health-check it.
package consul

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	consulapi "github.com/hashicorp/consul/api"
)

// Instance is one running copy of a service as Consul should see it.
type Instance struct {
	Service string
	Host    string
	Port    int
	Tags    []string
	Meta    map[string]string

	HealthPath      string
	CheckInterval   time.Duration
	CheckTimeout    time.Duration
	DeregisterAfter time.Duration
}

// NewInstance describes service at host:port with an HTTP check on /health.
func NewInstance(service, host string, port int, tags ...string) Instance {
	return Instance{
		Service:         service,
		Host:            host,
		Port:            port,
		Tags:            tags,
		HealthPath:      "/health",
		CheckInterval:   10 * time.Second,
		CheckTimeout:    3 * time.Second,
		DeregisterAfter: time.Minute,
	}
}

// ID is stable per host so a restarted instance replaces its old entry.
func (i Instance) ID() string {
	return fmt.Sprintf("%s-%s", i.Service, i.Host)
}

// HealthURL is the address the agent polls.
func (i Instance) HealthURL() string {
	return "http://" + net.JoinHostPort(i.Host, strconv.Itoa(i.Port)) + i.HealthPath
}

func (i Instance) registration() *consulapi.AgentServiceRegistration {
	reg := &consulapi.AgentServiceRegistration{
		ID:      i.ID(),
		Name:    i.Service,
		Address: i.Host,
		Port:    i.Port,
		Tags:    i.Tags,
		Meta:    i.Meta,
	}
	if i.HealthPath != "" {
		reg.Check = &consulapi.AgentServiceCheck{
			HTTP:                           i.HealthURL(),
			Interval:                       i.CheckInterval.String(),
			Timeout:                        i.CheckTimeout.String(),
			DeregisterCriticalServiceAfter: i.DeregisterAfter.String(),
		}
	}
	return reg
}

// Registrar talks to the local agent's service endpoints.
type Registrar struct {
	agent *consulapi.Agent
}

// NewRegistrar connects to the agent at addr. An empty token uses the agent default.
func NewRegistrar(addr, token string) (*Registrar, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr
	if token != "" {
		cfg.Token = token
	}

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &Registrar{agent: client.Agent()}, nil
}

// Register announces inst, replacing checks left by a previous run with the same ID.
func (r *Registrar) Register(ctx context.Context, inst Instance) error {
	opts := consulapi.ServiceRegisterOpts{ReplaceExistingChecks: true}.WithContext(ctx)
	if err := r.agent.ServiceRegisterOpts(inst.registration(), opts); err != nil {
		return fmt.Errorf("failed to register %s: %w", inst.ID(), err)
	}
	return nil
}

// Deregister removes the instance with the given ID.
func (r *Registrar) Deregister(ctx context.Context, id string) error {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	if err := r.agent.ServiceDeregisterOpts(id, q); err != nil {
		return fmt.Errorf("failed to deregister %s: %w", id, err)
	}
	return nil
}
