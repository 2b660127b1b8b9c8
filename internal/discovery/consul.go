package discovery

import (
	"fmt"
	"os"

	consulapi "github.com/hashicorp/consul/api"
)

// Registration is this instance's entry in the Consul catalog. The gateway
// resolves the service by name through Consul health checks.
type Registration struct {
	client *consulapi.Client
	id     string
}

func Register(consulAddr, name, address string, port int) (*Registration, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = consulAddr
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	reg := serviceRegistration(name, address, port)
	if err := client.Agent().ServiceRegister(reg); err != nil {
		return nil, fmt.Errorf("consul register: %w", err)
	}
	return &Registration{client: client, id: reg.ID}, nil
}

func (r *Registration) Deregister() error {
	if r == nil {
		return nil
	}
	return r.client.Agent().ServiceDeregister(r.id)
}

func serviceRegistration(name, address string, port int) *consulapi.AgentServiceRegistration {
	if address == "" {
		address, _ = os.Hostname()
	}
	return &consulapi.AgentServiceRegistration{
		ID:      fmt.Sprintf("%s-%s-%d", name, address, port),
		Name:    name,
		Address: address,
		Port:    port,
		Tags:    []string{"http", "media"},
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/healthz", address, port),
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}
