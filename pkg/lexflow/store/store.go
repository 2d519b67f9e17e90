package store

import (
	"context"

	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
)

// Store persists versioned stage models and pipeline manifests.
//
// Load returns an error wrapping internalerr.ErrNotFound when the artifact
// is absent, including when it vanished after a successful Exists.
type Store interface {
	Close() error

	// Models
	Exists(ctx context.Context, d model.Descriptor) (bool, error)
	Load(ctx context.Context, d model.Descriptor) (process.Process, error)
	Save(ctx context.Context, d model.Descriptor, p process.Process) error
	Delete(ctx context.Context, d model.Descriptor) error
	// Latest returns the highest stored version of a family.
	Latest(ctx context.Context, f model.Family) (model.Descriptor, bool, error)

	// Manifests: the descriptor list of a persisted pipeline
	SaveManifest(ctx context.Context, d model.Descriptor, models []model.Descriptor) error
	LoadManifest(ctx context.Context, d model.Descriptor) ([]model.Descriptor, error)
}

// Codec converts stage models to and from bytes.
type Codec interface {
	Encode(p process.Process) ([]byte, error)
	Decode(d model.Descriptor, data []byte) (process.Process, error)
}

// Manifest is the serialized descriptor list of a pipeline.
type Manifest struct {
	Pipeline model.Descriptor   `yaml:"pipeline"`
	Models   []model.Descriptor `yaml:"models"`
}
