package storage

import "posterforge/internal/ports"

// Provider is the artifact storage contract used across API and workers.
// It is an alias to ports.StorageProvider to keep call-sites simple.
type Provider = ports.StorageProvider
