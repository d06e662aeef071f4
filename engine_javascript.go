package engine

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/robertkrimen/otto"
)

const (
	TypeEngineJs = "js"
)

// JsEngine evaluates ES5 module bodies on otto. It requires the "es5"
// compile target, so sources are limited to what esbuild can lower to ES5:
// var and function declarations, no let, const or class.
type JsEngine struct {
	vm   *otto.Otto
	host *otto.Object
}

func (e *JsEngine) New() {
	e.vm = otto.New()
	host, err := e.vm.Object("({})")
	if err != nil {
		panic(err)
	}
	e.host = host
}

func (e *JsEngine) Name() string { return TypeEngineJs }

func (e *JsEngine) RegisterObject(objectName string, objectPtr interface{}) {
	e.set(objectName, objectPtr)
}

func (e *JsEngine) RegisterFunction(goFuncName string, goFuncPtr interface{}) {
	e.set(goFuncName, e.wrap(goFuncPtr))
}

func (e *JsEngine) RegisterModule(moduleName string, moduleFuncPtr map[string]interface{}) {
	mod, err := e.vm.Object("({})")
	if err != nil {
		panic(err)
	}
	for goFuncName, goFuncPtr := range moduleFuncPtr {
		if err := mod.Set(goFuncName, e.wrap(goFuncPtr)); err != nil {
			panic(err)
		}
	}
	_ = mod.Set("name", moduleName)
	e.set(moduleName, mod.Value())
}

func (e *JsEngine) set(name string, v interface{}) {
	if err := e.host.Set(name, v); err != nil {
		panic(err)
	}
	if err := e.vm.Set(name, v); err != nil {
		panic(err)
	}
}

// wrap adapts a Go func to an otto native function, converting each script
// argument to the parameter type. Missing arguments become zero values.
func (e *JsEngine) wrap(goFuncPtr interface{}) func(otto.FunctionCall) otto.Value {
	goFuncVal := reflect.ValueOf(goFuncPtr)
	if goFuncVal.Kind() != reflect.Func {
		panic("register not invalid function")
	}
	goFuncType := goFuncVal.Type()
	goParamsNum := goFuncType.NumIn()

	return func(call otto.FunctionCall) otto.Value {
		n := goParamsNum
		if goFuncType.IsVariadic() {
			n = goParamsNum - 1
			if len(call.ArgumentList) > n {
				n = len(call.ArgumentList)
			}
		}

		in := make([]reflect.Value, n)
		for i := 0; i < n; i++ {
			var want reflect.Type
			if goFuncType.IsVariadic() && i >= goParamsNum-1 {
				want = goFuncType.In(goParamsNum - 1).Elem()
			} else {
				want = goFuncType.In(i)
			}
			val, err := call.Argument(i).Export()
			if err != nil {
				panic(e.vm.MakeCustomError("TypeError", err.Error()))
			}
			arg, err := convertArg(val, want)
			if err != nil {
				panic(e.vm.MakeCustomError("TypeError", err.Error()))
			}
			in[i] = arg
		}

		goRets := goFuncVal.Call(in)
		if len(goRets) == 0 {
			return otto.UndefinedValue()
		}
		result, err := e.vm.ToValue(goRets[0].Interface())
		if err != nil {
			panic(e.vm.MakeCustomError("TypeError", err.Error()))
		}
		return result
	}
}

func convertArg(val interface{}, want reflect.Type) (reflect.Value, error) {
	if val == nil {
		return reflect.Zero(want), nil
	}
	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", val, want)
}

type jsModule struct {
	path   string
	e      *JsEngine
	record *otto.Object
}

func (m *jsModule) Path() string { return m.path }

func (m *jsModule) exports() otto.Value {
	v, err := m.record.Get("exports")
	if err != nil {
		return otto.UndefinedValue()
	}
	return v
}

func (m *jsModule) Exports() Value { return ottoValue{e: m.e, v: m.exports()} }

func (e *JsEngine) NewModule(path string) Module {
	record, err := e.vm.Object("({exports: {}})")
	if err != nil {
		panic(err)
	}
	_ = record.Set("id", path)
	return &jsModule{path: path, e: e, record: record}
}

func (e *JsEngine) Evaluate(mod Module, compiled string, require RequireFunc) error {
	m, ok := mod.(*jsModule)
	if !ok {
		panic("js engine given a foreign module")
	}
	script, err := e.vm.Compile(m.path, compiled)
	if err != nil {
		return err
	}
	body, err := e.vm.Run(script)
	if err != nil {
		return err
	}
	if !body.IsFunction() {
		return fmt.Errorf("module body of %s is not a function", m.path)
	}

	// otto only carries script values across a throw
	var requireErr error
	req := func(call otto.FunctionCall) otto.Value {
		dep, err := require(m.path, call.Argument(0).String())
		if err != nil {
			requireErr = err
			panic(e.vm.MakeCustomError("RequireError", err.Error()))
		}
		return dep.(*jsModule).exports()
	}
	reqVal, err := e.vm.ToValue(req)
	if err != nil {
		return err
	}

	_, err = body.Call(otto.UndefinedValue(), m.record.Value(), m.exports(), reqVal, e.host.Value())
	if err != nil && requireErr != nil {
		return fmt.Errorf("%s: %w", err.Error(), requireErr)
	}
	return err
}

func (e *JsEngine) Close() {
}

type ottoValue struct {
	e *JsEngine
	v otto.Value
}

func (v ottoValue) IsUndefined() bool { return v.v.IsUndefined() || v.v.IsNull() }
func (v ottoValue) IsFunction() bool  { return v.v.IsFunction() }
func (v ottoValue) IsObject() bool    { return v.v.IsObject() }
func (v ottoValue) String() string    { return v.v.String() }

func (v ottoValue) Export() interface{} {
	out, err := v.v.Export()
	if err != nil {
		return nil
	}
	return out
}

func (v ottoValue) Get(key string) Value {
	if !v.v.IsObject() {
		return ottoValue{e: v.e, v: otto.UndefinedValue()}
	}
	out, err := v.v.Object().Get(key)
	if err != nil {
		return ottoValue{e: v.e, v: otto.UndefinedValue()}
	}
	return ottoValue{e: v.e, v: out}
}

func (v ottoValue) Keys() []string {
	if !v.v.IsObject() {
		return nil
	}
	return v.v.Object().Keys()
}

func (v ottoValue) Len() int {
	n := v.Get("length").(ottoValue).v
	if !n.IsNumber() {
		return 0
	}
	i, err := n.ToInteger()
	if err != nil {
		return 0
	}
	return int(i)
}

func (v ottoValue) Index(i int) Value { return v.Get(strconv.Itoa(i)) }

func (v ottoValue) Call(args ...interface{}) (Value, error) {
	if !v.v.IsFunction() {
		return nil, fmt.Errorf("%s is not a function", v.String())
	}
	in := make([]interface{}, len(args))
	for i, arg := range args {
		if ov, ok := arg.(ottoValue); ok {
			in[i] = ov.v
			continue
		}
		in[i] = arg
	}
	res, err := v.v.Call(otto.UndefinedValue(), in...)
	if err != nil {
		return nil, err
	}
	return ottoValue{e: v.e, v: res}, nil
}
