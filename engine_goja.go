package engine

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/dop251/goja"
)

const (
	TypeEngineGoja = "goja"
)

type GojaEngine struct {
	vm   *goja.Runtime
	host *goja.Object
}

func (e *GojaEngine) New() {
	e.vm = goja.New()
	e.vm.SetFieldNameMapper(goja.TagFieldNameMapper("script", true))
	e.host = e.vm.NewObject()
}

func (e *GojaEngine) Name() string { return TypeEngineGoja }

func (e *GojaEngine) RegisterObject(objectName string, objectPtr interface{}) {
	e.set(objectName, objectPtr)
}

func (e *GojaEngine) RegisterFunction(goFuncName string, goFuncPtr interface{}) {
	if reflect.ValueOf(goFuncPtr).Kind() != reflect.Func {
		panic("register not invalid function")
	}
	e.set(goFuncName, goFuncPtr)
}

func (e *GojaEngine) RegisterModule(moduleName string, moduleFuncPtr map[string]interface{}) {
	mod := e.vm.NewObject()
	for goFuncName, goFuncPtr := range moduleFuncPtr {
		if reflect.ValueOf(goFuncPtr).Kind() != reflect.Func {
			panic("register not invalid function")
		}
		_ = mod.Set(goFuncName, goFuncPtr)
	}
	_ = mod.Set("name", moduleName)
	e.set(moduleName, mod)
}

// set installs v on the host object and as a global.
func (e *GojaEngine) set(name string, v interface{}) {
	if err := e.host.Set(name, v); err != nil {
		panic(err)
	}
	if err := e.vm.Set(name, v); err != nil {
		panic(err)
	}
}

type gojaModule struct {
	path   string
	vm     *goja.Runtime
	record *goja.Object
}

func (m *gojaModule) Path() string { return m.path }

func (m *gojaModule) exports() goja.Value { return m.record.Get("exports") }

func (m *gojaModule) Exports() Value { return gojaValue{vm: m.vm, v: m.exports()} }

func (e *GojaEngine) NewModule(path string) Module {
	record := e.vm.NewObject()
	_ = record.Set("id", path)
	_ = record.Set("exports", e.vm.NewObject())
	return &gojaModule{path: path, vm: e.vm, record: record}
}

func (e *GojaEngine) Evaluate(mod Module, compiled string, require RequireFunc) error {
	m, ok := mod.(*gojaModule)
	if !ok {
		panic("goja engine given a foreign module")
	}
	prg, err := goja.Compile(m.path, compiled, false)
	if err != nil {
		return err
	}
	body, err := e.vm.RunProgram(prg)
	if err != nil {
		return err
	}
	fn, ok := goja.AssertFunction(body)
	if !ok {
		return fmt.Errorf("module body of %s is not a function", m.path)
	}

	req := func(call goja.FunctionCall) goja.Value {
		dep, err := require(m.path, call.Argument(0).String())
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		return dep.(*gojaModule).exports()
	}
	_, err = fn(goja.Undefined(), m.record, m.exports(), e.vm.ToValue(req), e.host)
	return err
}

func (e *GojaEngine) Close() {
	e.vm.Interrupt("engine closed")
}

type gojaValue struct {
	vm *goja.Runtime
	v  goja.Value
}

func (v gojaValue) IsUndefined() bool {
	return v.v == nil || goja.IsUndefined(v.v) || goja.IsNull(v.v)
}

func (v gojaValue) IsFunction() bool {
	_, ok := goja.AssertFunction(v.v)
	return ok
}

func (v gojaValue) IsObject() bool {
	if v.IsUndefined() {
		return false
	}
	_, ok := v.v.(*goja.Object)
	return ok
}

func (v gojaValue) Export() interface{} {
	if v.v == nil {
		return nil
	}
	return v.v.Export()
}

func (v gojaValue) String() string {
	if v.v == nil {
		return "undefined"
	}
	return v.v.String()
}

func (v gojaValue) Get(key string) Value {
	out := gojaValue{vm: v.vm}
	obj, ok := v.v.(*goja.Object)
	if !ok || v.IsUndefined() {
		return out
	}
	// getters may throw
	if ex := v.vm.Try(func() { out.v = obj.Get(key) }); ex != nil {
		out.v = nil
	}
	return out
}

func (v gojaValue) Keys() []string {
	obj, ok := v.v.(*goja.Object)
	if !ok || v.IsUndefined() {
		return nil
	}
	return obj.Keys()
}

func (v gojaValue) Len() int {
	n := v.Get("length")
	if n.IsUndefined() {
		return 0
	}
	return int(n.(gojaValue).v.ToInteger())
}

func (v gojaValue) Index(i int) Value { return v.Get(strconv.Itoa(i)) }

func (v gojaValue) Call(args ...interface{}) (Value, error) {
	fn, ok := goja.AssertFunction(v.v)
	if !ok {
		return nil, fmt.Errorf("%s is not a function", v.String())
	}
	in := make([]goja.Value, len(args))
	for i, arg := range args {
		if gv, ok := arg.(gojaValue); ok {
			in[i] = gv.v
			continue
		}
		in[i] = v.vm.ToValue(arg)
	}
	res, err := fn(goja.Undefined(), in...)
	if err != nil {
		return nil, err
	}
	return gojaValue{vm: v.vm, v: res}, nil
}
