package reconciler

import (
	"context"

	"saft-reconciliation-service/internal/registry"
)

// RegistryLookup is the registry access an analysis needs. registry.Client
// implements it.
//
//go:generate mockgen -destination=mocks/mock_lookup.go -source=interface.go RegistryLookup
type RegistryLookup interface {
	FetchAccounts(ctx context.Context, orgnr string) (registry.Result, error)
	CompanyStatus(ctx context.Context, orgnr string) (registry.CompanyStatus, error)
}
