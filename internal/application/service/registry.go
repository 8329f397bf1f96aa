package service

import (
	"sort"

	"scout-agent/internal/application/port/input"
	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
)

var _ output.DelegateRegistry = (*DelegateRegistryImpl)(nil)

type DelegateRegistryImpl struct {
	delegates map[entity.AgentKind]input.Delegate
}

func NewDelegateRegistry(delegates ...input.Delegate) *DelegateRegistryImpl {
	r := &DelegateRegistryImpl{
		delegates: make(map[entity.AgentKind]input.Delegate),
	}
	for _, d := range delegates {
		r.Register(d)
	}
	return r
}

func (r *DelegateRegistryImpl) Register(delegate input.Delegate) {
	r.delegates[delegate.Kind()] = delegate
}

func (r *DelegateRegistryImpl) Get(kind entity.AgentKind) (input.Delegate, bool) {
	d, ok := r.delegates[kind]
	return d, ok
}

func (r *DelegateRegistryImpl) List() []entity.AgentKind {
	result := make([]entity.AgentKind, 0, len(r.delegates))
	for kind := range r.delegates {
		result = append(result, kind)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
