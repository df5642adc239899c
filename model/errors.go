package model

import "errors"

// Sentinel errors for the failure modes callers branch on. Wrap them
// with %w and context; match with errors.Is.
var (
	// ErrConfiguration marks missing or invalid settings detected
	// before any side effect.
	ErrConfiguration = errors.New("configuration error")

	// ErrDirectoryNotFound marks a missing or unreadable scan root.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrConnectivity marks network or auth failures against a
	// provider or a deployed URL.
	ErrConnectivity = errors.New("connectivity error")

	// ErrIntegrity marks a hash mismatch between manifest and asset.
	ErrIntegrity = errors.New("integrity mismatch")

	// ErrSizeLimit marks an asset over its category budget. Size
	// limits are advisory; this sentinel exists for callers that
	// want to promote the warning.
	ErrSizeLimit = errors.New("size limit exceeded")

	// ErrProviderUnsupported marks an unknown deployment target.
	ErrProviderUnsupported = errors.New("unsupported deployment target")

	// ErrNoPriorDeployment marks a rollback with nothing to roll
	// back to.
	ErrNoPriorDeployment = errors.New("no prior deployment found")

	// ErrInvalidManifest marks a manifest that fetched fine but does
	// not parse or misses required fields.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrNotImplemented marks a provider that is registered but has
	// no working implementation yet.
	ErrNotImplemented = errors.New("not yet implemented")
)
