package engine

import "fmt"

// Engine is an evaluator backend. Compiled module bodies are evaluated one
// at a time; an Engine is not safe for concurrent use.
type Engine interface {
	New()
	Name() string

	RegisterObject(objectName string, objectPtr interface{})
	RegisterFunction(goFuncName string, goFuncPtr interface{})
	RegisterModule(moduleName string, moduleFuncPtr map[string]interface{})

	// NewModule creates a fresh module record for path.
	NewModule(path string) Module
	// Evaluate runs the wrapped body compiled against mod. Calls to require
	// inside the body go through require, with from set to mod's path.
	Evaluate(mod Module, compiled string, require RequireFunc) error

	Close()
}

type RequireFunc func(from, spec string) (Module, error)

type Module interface {
	Path() string
	// Exports returns the current module.exports, which a body may replace.
	Exports() Value
}

// Value is a script value handed back to Go.
type Value interface {
	IsUndefined() bool
	IsFunction() bool
	IsObject() bool
	Export() interface{}
	String() string

	Get(key string) Value
	Keys() []string
	Len() int
	Index(i int) Value

	Call(args ...interface{}) (Value, error)
}

// NewEngine returns an initialized backend of the given type.
func NewEngine(engineType string) (Engine, error) {
	var engine Engine
	switch engineType {
	case TypeEngineGoja, "":
		engine = &GojaEngine{}
	case TypeEngineJs:
		engine = &JsEngine{}
	default:
		return nil, fmt.Errorf("unknown script engine %q", engineType)
	}
	engine.New()
	return engine, nil
}
