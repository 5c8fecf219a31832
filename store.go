package injector

import (
	"errors"
	"fmt"
	"io"
)

type (
	// instanceStore is the instance cache of one container.
	instanceStore struct {
		instances map[cacheKey]stored
		order     []cacheKey
	}

	// cacheKey identifies a cached instance: the token for a scalar binding, the token and the
	// record for each element of a multi binding.
	cacheKey struct {
		token  Token
		record *ResolvedProvider
	}

	stored struct {
		comp any
		// owned is set for instances built by the container itself (class and factory
		// bindings); only those are closed with the store.
		owned bool
	}
)

func newInstanceStore() *instanceStore {
	return &instanceStore{
		instances: make(map[cacheKey]stored),
	}
}

func (s *instanceStore) Put(key cacheKey, comp any, owned bool) {
	if _, exists := s.instances[key]; !exists {
		s.order = append(s.order, key)
	}
	s.instances[key] = stored{comp: comp, owned: owned}
}

func (s *instanceStore) Get(key cacheKey) (comp any, found bool) {
	entry, found := s.instances[key]
	return entry.comp, found
}

func (s *instanceStore) Len() int {
	return len(s.order)
}

// Keys lists the cached keys in creation order.
func (s *instanceStore) Keys() []cacheKey {
	return append([]cacheKey(nil), s.order...)
}

// Close empties the store, closing the owned io.Closer instances in reverse creation order.
func (s *instanceStore) Close() error {
	closeErrors := make([]error, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		key := s.order[i]
		entry := s.instances[key]
		if !entry.owned {
			continue
		}
		if closer, ok := entry.comp.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				closeErrors = append(
					closeErrors,
					fmt.Errorf("failed to close component %s:\n\t%w", key.token, err),
				)
			}
		}
	}
	s.instances = make(map[cacheKey]stored)
	s.order = nil

	return errors.Join(closeErrors...)
}

func scalarKey(token Token) cacheKey {
	return cacheKey{token: token}
}

func multiKey(rec *ResolvedProvider) cacheKey {
	return cacheKey{token: rec.Token, record: rec}
}
