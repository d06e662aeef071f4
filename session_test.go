package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestSession(t *testing.T, engineType string, opts ...Option) *Session {
	cfg := DefaultConfig()
	cfg.Engine = engineType
	if engineType == TypeEngineJs {
		cfg.Target = "es5"
	}
	s, err := NewSession(cfg, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

var engineTypes = []string{TypeEngineGoja, TypeEngineJs}

func TestEndToEndTypeScript(t *testing.T) {
	s := newTestSession(t, TypeEngineGoja)

	missing, err := s.RegisterSource("/Scripts/a.ts", `
import { b, order } from "./b"
order.push("a")
export const value: number = b + 1
export { order }
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"/Scripts/b.ts"}, missing)

	missing, err = s.RegisterSource("/Scripts/b.ts", `
export const order: string[] = []
order.push("b")
export const b = 41
`)
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.Empty(t, s.Compile())
	exports, err := s.Load("/Scripts/a.ts")
	require.NoError(t, err)

	assert.EqualValues(t, 42, exports.Get("value").Export())
	assert.Equal(t, []interface{}{"b", "a"}, exports.Get("order").Export())
	assert.Equal(t, ModuleReady, s.ModuleState("/Scripts/a.ts"))
	assert.Equal(t, ModuleReady, s.ModuleState("/Scripts/b.js"))
}

func TestEndToEndCommonJS(t *testing.T) {
	for _, engineType := range engineTypes {
		t.Run(engineType, func(t *testing.T) {
			s := newTestSession(t, engineType)

			missing, err := s.RegisterSource("/Scripts/a.js", `
var b = require("./b");
b.order.push("a");
module.exports = { order: b.order, value: b.value + 1 };
`)
			require.NoError(t, err)
			assert.Equal(t, []string{"/Scripts/b.js"}, missing)

			missing, err = s.RegisterSource("/Scripts/b.js", `
var order = [];
order.push("b");
module.exports = { order: order, value: 41 };
`)
			require.NoError(t, err)
			assert.Empty(t, missing)

			exports, err := s.Load("Scripts/a")
			require.NoError(t, err)
			assert.Equal(t, CompilerRun, s.CompilerState(), "load runs the first pass")
			assert.EqualValues(t, 42, exports.Get("value").Export())

			order := exports.Get("order")
			require.Equal(t, 2, order.Len())
			assert.Equal(t, "b", order.Index(0).String())
			assert.Equal(t, "a", order.Index(1).String())
		})
	}
}

func TestCircularRequire(t *testing.T) {
	for _, engineType := range engineTypes {
		t.Run(engineType, func(t *testing.T) {
			s := newTestSession(t, engineType)
			var seen string
			s.RegisterFunction("stateOf", func(p string) string {
				seen = s.loader.State(p).String()
				return seen
			})

			_, err := s.RegisterSource("/Scripts/a.js", `
exports.fromA = "A";
var b = require("./b");
exports.bSaw = b.sawA;
`)
			require.NoError(t, err)
			_, err = s.RegisterSource("/Scripts/b.js", `
var a = require("./a");
exports.sawA = a.fromA;
exports.state = stateOf("/Scripts/a.js");
`)
			require.NoError(t, err)

			exports, err := s.Load("/Scripts/a.js")
			require.NoError(t, err)
			assert.Equal(t, "A", exports.Get("bSaw").String())
			assert.Equal(t, "pending", seen)
			assert.Equal(t, 1, s.Evaluations("/Scripts/a.js"))
			assert.Equal(t, 1, s.Evaluations("/Scripts/b.js"))
		})
	}
}

func TestCircularImportTypeScript(t *testing.T) {
	s := newTestSession(t, TypeEngineGoja)
	_, err := s.RegisterSource("/Scripts/a.ts", `
import { fromB } from "./b"
export const fromA = "A"
export function readB() { return fromB }
`)
	require.NoError(t, err)
	_, err = s.RegisterSource("/Scripts/b.ts", `
import * as a from "./a"
export const fromB = "B"
export function keysOfA() { return Object.keys(a).sort().join(",") }
`)
	require.NoError(t, err)

	out, err := s.Invoke("/Scripts/a.ts", "readB")
	require.NoError(t, err)
	assert.Equal(t, "B", out.String())

	out, err = s.Invoke("/Scripts/b.ts", "keysOfA")
	require.NoError(t, err)
	assert.Equal(t, "fromA,readB", out.String())
}

func TestSingleEvaluation(t *testing.T) {
	for _, engineType := range engineTypes {
		t.Run(engineType, func(t *testing.T) {
			s := newTestSession(t, engineType)
			count := 0
			s.RegisterFunction("count", func() { count++ })

			_, err := s.RegisterSource("/Scripts/c.js", `count(); exports.x = 1;`)
			require.NoError(t, err)
			for i := 0; i < 3; i++ {
				_, err := s.Load("/Scripts/c.js")
				require.NoError(t, err)
			}
			assert.Equal(t, 1, count)
			assert.Equal(t, 1, s.Evaluations("/Scripts/c.js"))
		})
	}
}

func TestLoadUnregistered(t *testing.T) {
	s := newTestSession(t, TypeEngineGoja)
	_, err := s.Load("/Scripts/missing.ts")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindResolution))
	assert.Contains(t, err.Error(), "/Scripts/missing.js")
}

func TestMissingDependencyFailsEvaluation(t *testing.T) {
	for _, engineType := range engineTypes {
		t.Run(engineType, func(t *testing.T) {
			s := newTestSession(t, engineType)
			missing, err := s.RegisterSource("/Scripts/a.js", `var gone = require("./gone");`)
			require.NoError(t, err)
			assert.Equal(t, []string{"/Scripts/gone.js"}, missing)

			_, err = s.Load("/Scripts/a.js")
			require.Error(t, err)
			assert.True(t, IsKind(err, KindEval))
			assert.True(t, IsKind(err, KindResolution))
		})
	}
}

func TestFailedEvaluationCanBeCorrected(t *testing.T) {
	for _, engineType := range engineTypes {
		t.Run(engineType, func(t *testing.T) {
			s := newTestSession(t, engineType)
			_, err := s.RegisterSource("/Scripts/boom.js", `throw new Error("boom");`)
			require.NoError(t, err)

			_, err = s.Load("/Scripts/boom.js")
			require.Error(t, err)
			assert.True(t, IsKind(err, KindEval))
			assert.Contains(t, err.Error(), "boom")
			assert.Equal(t, ModuleState(0), s.ModuleState("/Scripts/boom.js"))

			_, err = s.UpdateSource("/Scripts/boom.js", `exports.fixed = true;`)
			require.NoError(t, err)
			exports, err := s.Load("/Scripts/boom.js")
			require.NoError(t, err)
			assert.Equal(t, true, exports.Get("fixed").Export())
			assert.Equal(t, 2, s.Evaluations("/Scripts/boom.js"))
		})
	}
}

func TestInvoke(t *testing.T) {
	for _, engineType := range engineTypes {
		t.Run(engineType, func(t *testing.T) {
			s := newTestSession(t, engineType)
			_, err := s.RegisterSource("/Scripts/math.js", `exports.add = function (a, b) { return a + b; }; exports.n = 1;`)
			require.NoError(t, err)

			out, err := s.Invoke("/Scripts/math.js", "add", 2, 3)
			require.NoError(t, err)
			assert.EqualValues(t, 5, out.Export())

			_, err = s.Invoke("/Scripts/math.js", "n")
			assert.True(t, IsKind(err, KindNotFound))
		})
	}
}

func TestPreloadedModule(t *testing.T) {
	s := newTestSession(t, TypeEngineGoja)
	require.NoError(t, s.Preload("/Scripts/vendor/lib.js", `module.exports = { answer: 42 };`))
	_, err := s.RegisterSource("/Scripts/main.js", `exports.answer = require("./vendor/lib").answer;`)
	require.NoError(t, err)

	exports, err := s.Load("/Scripts/main.js")
	require.NoError(t, err)
	assert.EqualValues(t, 42, exports.Get("answer").Export())
}

func TestReadFileReturnsCopy(t *testing.T) {
	s := newTestSession(t, TypeEngineGoja)
	_, err := s.RegisterSource("/Scripts/a.ts", `export const a = 1`)
	require.NoError(t, err)

	f, err := s.ReadFile("Scripts/a.ts")
	require.NoError(t, err)
	f.Raw = "changed"

	again, err := s.ReadFile("/Scripts/a.ts")
	require.NoError(t, err)
	assert.Equal(t, `export const a = 1`, again.Raw)
	assert.Equal(t, []string{"/Scripts/a.ts"}, s.Files())

	_, err = s.ReadFile("/Scripts/nope.ts")
	assert.True(t, IsKind(err, KindNotFound))
}

func TestRegisteredObjectsReachModules(t *testing.T) {
	for _, engineType := range engineTypes {
		t.Run(engineType, func(t *testing.T) {
			s := newTestSession(t, engineType)
			s.RegisterObject("settings", map[string]interface{}{"mode": "test"})
			s.RegisterModule("mathx", map[string]interface{}{
				"double": func(n int) int { return n * 2 },
			})

			_, err := s.RegisterSource("/Scripts/m.js", `
exports.mode = host.settings.mode;
exports.doubled = host.mathx.double(21);
exports.global = settings.mode;
`)
			require.NoError(t, err)
			exports, err := s.Load("/Scripts/m.js")
			require.NoError(t, err)
			assert.Equal(t, "test", exports.Get("mode").String())
			assert.EqualValues(t, 42, exports.Get("doubled").Export())
			assert.Equal(t, "test", exports.Get("global").String())
		})
	}
}

func TestRegisterFunctionRejectsNonFunc(t *testing.T) {
	for _, engineType := range engineTypes {
		t.Run(engineType, func(t *testing.T) {
			s := newTestSession(t, engineType)
			assert.Panics(t, func() { s.RegisterFunction("nope", 42) })
		})
	}
}

func TestNewSessionRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = "lua"
	_, err := NewSession(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Target = "es3"
	_, err = NewSession(cfg)
	assert.Error(t, err)
}

func TestJsEngineLoadsTypeScriptModules(t *testing.T) {
	s := newTestSession(t, TypeEngineJs)

	missing, err := s.RegisterSource("/Scripts/a.ts", `
import { base } from "./b"
export function run(n: number): number {
  var doubled: number = n * 2
  return doubled + base
}
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"/Scripts/b.ts"}, missing)
	_, err = s.RegisterSource("/Scripts/b.ts", `export var base: number = 1`)
	require.NoError(t, err)

	require.Empty(t, s.Compile())
	out, err := s.Invoke("/Scripts/a.ts", "run", 20)
	require.NoError(t, err)
	assert.EqualValues(t, 41, out.Export())
}

func TestJsEngineReportsUnlowerableSyntax(t *testing.T) {
	s := newTestSession(t, TypeEngineJs)
	_, err := s.RegisterSource("/Scripts/c.ts", `export const b = 41`)
	require.NoError(t, err)

	diags := s.Compile()
	require.NotEmpty(t, diags)
	assert.Equal(t, SeverityError, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "es5")

	_, err = s.Load("/Scripts/c.ts")
	assert.True(t, IsKind(err, KindResolution))
}
