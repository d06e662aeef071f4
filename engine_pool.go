package engine

import "sync"

// SessionPool hands out ready sessions that share one emit cache. setup,
// when set, runs on every new session before it is handed out.
type SessionPool struct {
	cfg   Config
	opts  []Option
	setup func(*Session) error
	cache *EmitCache

	m     sync.Mutex
	saved []*Session
}

func (sp *SessionPool) Get() (*Session, error) {
	sp.m.Lock()
	n := len(sp.saved)
	if n == 0 {
		sp.m.Unlock()
		return sp.New()
	}
	x := sp.saved[n-1]
	sp.saved = sp.saved[0 : n-1]
	sp.m.Unlock()
	return x, nil
}

func (sp *SessionPool) Put(s *Session) {
	sp.m.Lock()
	defer sp.m.Unlock()
	sp.saved = append(sp.saved, s)
}

func (sp *SessionPool) Shutdown() {
	sp.m.Lock()
	defer sp.m.Unlock()
	for _, s := range sp.saved {
		s.Close()
	}
	sp.saved = nil
}

func (sp *SessionPool) New() (*Session, error) {
	opts := append([]Option{WithEmitCache(sp.cache)}, sp.opts...)
	s, err := NewSession(sp.cfg, opts...)
	if err != nil {
		return nil, err
	}
	if sp.setup != nil {
		if err := sp.setup(s); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Len reports how many idle sessions the pool holds.
func (sp *SessionPool) Len() int {
	sp.m.Lock()
	defer sp.m.Unlock()
	return len(sp.saved)
}

func InitSessionPool(cfg Config, setup func(*Session) error, opts ...Option) (*SessionPool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cache, err := NewEmitCache(cfg.CompileCacheSize)
	if err != nil {
		return nil, err
	}
	return &SessionPool{
		cfg:   cfg,
		opts:  opts,
		setup: setup,
		cache: cache,
		saved: make([]*Session, 0, 4),
	}, nil
}
