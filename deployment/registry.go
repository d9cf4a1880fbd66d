package deployment

import (
	"errors"
	"sync"
)

var EDeploymentNotFound = errors.New("no deployment registered for this id")

// DeploymentInfo identifies the code that produced the key and value bytes
// of an overflow entry. Entries sourced purely from the in-memory tier
// never carry one: the supplier attaches at most one DeploymentInfo to a
// supply batch, resolved from the first overflow entry in that batch whose
// key class-loader id the registry knows, and later entries in the batch
// carry none of their own, whatever their ids.
type DeploymentInfo struct {
	ID          string
	ClassName   string
	UserVersion string
}

// Loader resolves an opaque class-loader id carried on an overflow entry
// to the deployment metadata the demander needs in order to reconstruct
// the value on its side. There is no Go analogue of a JVM classloader
// here; Loader exists purely so the rest of the engine has one interface
// to call regardless of how deployment metadata is actually sourced.
type Loader interface {
	Load(id string) (DeploymentInfo, error)
}

// Registry is a Loader backed by an in-process map, populated ahead of
// time by whatever deploys code into the cluster. It is the registry a
// single node consults while building outgoing supply batches.
type Registry struct {
	lock        sync.RWMutex
	deployments map[string]DeploymentInfo
}

func NewRegistry() *Registry {
	return &Registry{
		deployments: make(map[string]DeploymentInfo),
	}
}

func (r *Registry) Register(info DeploymentInfo) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.deployments[info.ID] = info
}

func (r *Registry) Load(id string) (DeploymentInfo, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	info, exists := r.deployments[id]

	if !exists {
		return DeploymentInfo{}, EDeploymentNotFound
	}

	return info, nil
}
