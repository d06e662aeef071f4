package engine

import (
	"errors"
	"fmt"
	"maps"

	"go.uber.org/zap"
)

// GlobalScene addresses only the global hooks in FireSignal.
const GlobalScene = -1

type Hook struct {
	Signal   string
	Callback Value
}

// SceneInstance is one loaded scene module. State is handed to every hook
// callback as its first argument and may be mutated by it.
type SceneInstance struct {
	ID    int
	Path  string
	State map[string]interface{}
	hooks []Hook
}

func (i *SceneInstance) Hooks() []Hook { return append([]Hook(nil), i.hooks...) }

// LoadScene loads a scene module and creates an instance of it. The scene
// definition is the module's default export, or its exports object when it
// has none: `hooks` and `globalHooks` are arrays of {signal, callback} and
// `onCreate(instanceId, state)` runs once when present.
func (s *Session) LoadScene(spec string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exports, err := s.load(spec)
	if err != nil {
		return 0, err
	}
	p := s.norm.Normalize(spec, true)
	def := exports
	if d := exports.Get("default"); d.IsObject() {
		def = d
	}

	hooks, err := readHooks(p, def.Get("hooks"))
	if err != nil {
		return 0, err
	}
	globals, err := readHooks(p, def.Get("globalHooks"))
	if err != nil {
		return 0, err
	}

	inst := &SceneInstance{ID: s.nextScene, Path: p, State: make(map[string]interface{}), hooks: hooks}
	if onCreate := def.Get("onCreate"); onCreate.IsFunction() {
		if _, err := onCreate.Call(inst.ID, inst.State); err != nil {
			return 0, &EngineError{Kind: KindEval, Path: p, Message: "onCreate", Cause: err}
		}
	}
	s.nextScene++
	s.scenes[inst.ID] = inst
	s.globalHooks = append(s.globalHooks, globals...)
	s.log.Info("scene loaded", zap.String("path", p), zap.Int("instance", inst.ID),
		zap.Int("hooks", len(hooks)), zap.Int("globalHooks", len(globals)))
	return inst.ID, nil
}

func readHooks(p string, list Value) ([]Hook, error) {
	if list.IsUndefined() {
		return nil, nil
	}
	if !list.IsObject() {
		return nil, &EngineError{Kind: KindEval, Path: p, Message: "hooks must be an array"}
	}
	n := list.Len()
	hooks := make([]Hook, 0, n)
	for i := 0; i < n; i++ {
		h := list.Index(i)
		cb := h.Get("callback")
		if !cb.IsFunction() {
			return nil, &EngineError{Kind: KindEval, Path: p, Message: fmt.Sprintf("hook %d has no callback", i)}
		}
		hooks = append(hooks, Hook{Signal: h.Get("signal").String(), Callback: cb})
	}
	return hooks, nil
}

// FireSignal runs the global hooks for signal and then, unless id is
// GlobalScene, the hooks of scene instance id. Every matching hook runs;
// their errors are joined.
func (s *Session) FireSignal(id int, signal string, args ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inst *SceneInstance
	if id != GlobalScene {
		var ok bool
		if inst, ok = s.scenes[id]; !ok {
			return notFound("", "scene instance %d", id)
		}
	}

	var errs []error
	fired := 0
	for _, h := range s.globalHooks {
		if h.Signal != signal {
			continue
		}
		fired++
		if _, err := h.Callback.Call(append([]interface{}{s.globalState}, args...)...); err != nil {
			errs = append(errs, fmt.Errorf("global hook %s: %w", signal, err))
		}
	}
	if fired == 0 {
		s.log.Debug("no global hooks for signal", zap.String("signal", signal))
	}

	if inst != nil {
		fired = 0
		for _, h := range inst.hooks {
			if h.Signal != signal {
				continue
			}
			fired++
			if _, err := h.Callback.Call(append([]interface{}{inst.State}, args...)...); err != nil {
				errs = append(errs, fmt.Errorf("scene %d hook %s: %w", id, signal, err))
			}
		}
		if fired == 0 {
			s.log.Debug("no scene hooks for signal", zap.String("signal", signal), zap.Int("instance", id))
		}
	}
	return errors.Join(errs...)
}

// Scene returns a snapshot of the instance with the given id; its State is
// a copy.
func (s *Session) Scene(id int) (SceneInstance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.scenes[id]
	if !ok {
		return SceneInstance{}, false
	}
	snapshot := *inst
	snapshot.State = maps.Clone(inst.State)
	return snapshot, true
}

// GlobalState returns a copy of the state global hooks receive.
func (s *Session) GlobalState() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.globalState)
}
