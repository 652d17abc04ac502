package server

import (
	"context"
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/ports"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
)

// registryTenant is one tenant row of the YAML registry file used in
// development setups without a shared public.tenants table.
type registryTenant struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	HeaderAlias string `yaml:"header_alias"`
	Hostname    string `yaml:"hostname"`
	SchemaName  string `yaml:"schema_name"`
}

type registryFile struct {
	Version int              `yaml:"version"`
	Tenants []registryTenant `yaml:"tenants"`
}

// staticTenantDirectory serves tenant lookups from an in-memory index
// keyed by both header alias and hostname.
type staticTenantDirectory struct {
	byIdentifier map[string]types.Tenant
}

var _ ports.TenantDirectory = (*staticTenantDirectory)(nil)

func (d *staticTenantDirectory) Lookup(_ context.Context, identifier string) (types.Tenant, bool, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return types.Tenant{}, false, nil
	}
	t, ok := d.byIdentifier[identifier]
	return t, ok, nil
}

func loadTenantRegistry() (ports.TenantDirectory, error) {
	path := os.Getenv("TENANTS_PATH")
	if path == "" {
		return nil, errors.New("tenants: TENANTS_PATH not set")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rf registryFile
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return nil, err
	}
	if rf.Version != 1 {
		return nil, errors.New("tenants: unsupported version")
	}
	if len(rf.Tenants) == 0 {
		return nil, errors.New("tenants: empty")
	}

	byIdentifier := make(map[string]types.Tenant, 2*len(rf.Tenants))
	for _, rt := range rf.Tenants {
		if rt.ID == "" || rt.Hostname == "" || rt.SchemaName == "" {
			return nil, errors.New("tenants: invalid tenant")
		}
		t := types.Tenant{
			ID:          rt.ID,
			Name:        rt.Name,
			HeaderAlias: strings.ToLower(strings.TrimSpace(rt.HeaderAlias)),
			Hostname:    strings.ToLower(strings.TrimSpace(rt.Hostname)),
			SchemaName:  rt.SchemaName,
		}
		if t.HeaderAlias != "" {
			byIdentifier[t.HeaderAlias] = t
		}
		byIdentifier[t.Hostname] = t
	}
	return &staticTenantDirectory{byIdentifier: byIdentifier}, nil
}
