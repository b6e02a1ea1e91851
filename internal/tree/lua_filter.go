package tree

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultFilterTimeout bounds a single predicate evaluation.
const DefaultFilterTimeout = time.Second

// LuaFilter is a user predicate deciding which entries enter the listing.
// The script sees the globals path, name and isDir and returns a truthy value
// to keep the entry. Only the base, string, table and math libraries are
// loaded.
type LuaFilter struct {
	Timeout time.Duration

	mu sync.Mutex
	L  *lua.LState
	fn *lua.LFunction
}

// NewLuaFilter compiles code once; Keep reuses the compiled chunk.
func NewLuaFilter(code string) (*LuaFilter, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openLib := func(name string, f lua.LGFunction) {
		L.Push(L.NewFunction(f))
		L.Push(lua.LString(name))
		L.Call(1, 0)
	}
	openLib(lua.BaseLibName, lua.OpenBase)
	openLib(lua.StringLibName, lua.OpenString)
	openLib(lua.TabLibName, lua.OpenTable)
	openLib(lua.MathLibName, lua.OpenMath)

	fn, err := L.LoadString(code)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("lua filter: %w", err)
	}
	return &LuaFilter{Timeout: DefaultFilterTimeout, L: L, fn: fn}, nil
}

// Keep evaluates the predicate for e.
func (f *LuaFilter) Keep(e Entry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), f.Timeout)
		defer cancel()
		f.L.SetContext(ctx)
		defer f.L.RemoveContext()
	}
	f.L.SetGlobal("path", lua.LString(e.Path))
	f.L.SetGlobal("name", lua.LString(e.Name))
	f.L.SetGlobal("isDir", lua.LBool(e.IsDir))

	f.L.Push(f.fn)
	if err := f.L.PCall(0, 1, nil); err != nil {
		return false, fmt.Errorf("lua filter: %w", err)
	}
	ret := f.L.Get(-1)
	f.L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// Close releases the Lua state.
func (f *LuaFilter) Close() {
	if f == nil || f.L == nil {
		return
	}
	f.L.Close()
	f.L = nil
}
