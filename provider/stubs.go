package provider

import (
	"context"
	"fmt"

	"github.com/srnarasim/dataprism-tooling/model"
)

// stub is a registered target with no working backend. Every call
// fails fast with ErrNotImplemented so callers discover the gap at the
// first provider touch, never mid-deploy.
type stub struct {
	name string
}

func newStub(name string) *stub { return &stub{name: name} }

func (s *stub) Name() string { return s.name }

func (s *stub) err() error {
	return fmt.Errorf("%s: %w", s.name, model.ErrNotImplemented)
}

func (s *stub) TestConnection(ctx context.Context) error { return s.err() }

func (s *stub) Deploy(ctx context.Context, payload *Payload) (*model.DeploymentResult, error) {
	return nil, s.err()
}

func (s *stub) Validate(ctx context.Context, url string) (*model.ValidationResult, error) {
	return nil, s.err()
}

func (s *stub) Rollback(ctx context.Context, deploymentID string) (*model.DeploymentResult, error) {
	return nil, s.err()
}

func (s *stub) ListDeployments(ctx context.Context, limit int) ([]model.DeploymentRecord, error) {
	return nil, s.err()
}

func (s *stub) Status(ctx context.Context) (*model.ProviderStatus, error) {
	return nil, s.err()
}

func (s *stub) Cleanup(ctx context.Context) error { return nil }
