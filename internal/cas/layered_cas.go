package cas

import "github.com/kurobon/vex/internal/codec"

// LayeredCAS checks a local store before falling back to a shared one,
// so a repository can keep its own objects close while still reaching
// a shared pool (a team cache, a shared clone source) for objects it
// has never written locally. Writes always go to Local; Shared is
// read-only from this type's perspective.
type LayeredCAS struct {
	Local  CAS
	Shared CAS
}

func NewLayeredCAS(local, shared CAS) *LayeredCAS {
	return &LayeredCAS{Local: local, Shared: shared}
}

func (l *LayeredCAS) Put(h codec.Hash, data []byte) error {
	return l.Local.Put(h, data)
}

func (l *LayeredCAS) Get(h codec.Hash) ([]byte, error) {
	data, err := l.Local.Get(h)
	if err == nil {
		return data, nil
	}
	if l.Shared == nil {
		return nil, err
	}
	return l.Shared.Get(h)
}

func (l *LayeredCAS) Has(h codec.Hash) (bool, error) {
	ok, err := l.Local.Has(h)
	if err != nil {
		return false, err
	}
	if ok || l.Shared == nil {
		return ok, nil
	}
	return l.Shared.Has(h)
}

// IterReachable walks Local's objects first, then any Shared object not
// already seen locally.
func (l *LayeredCAS) IterReachable(fn func(codec.Hash) error) error {
	seen := make(map[codec.Hash]struct{})
	if err := l.Local.IterReachable(func(h codec.Hash) error {
		seen[h] = struct{}{}
		return fn(h)
	}); err != nil {
		return err
	}
	if l.Shared == nil {
		return nil
	}
	return l.Shared.IterReachable(func(h codec.Hash) error {
		if _, ok := seen[h]; ok {
			return nil
		}
		return fn(h)
	})
}
