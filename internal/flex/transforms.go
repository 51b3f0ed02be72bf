package flex

import (
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Tag helper functions for Lua style scripts

// RegisterTransforms registers the tag helpers as osm2tiles.transforms
func RegisterTransforms(L *lua.LState) {
	transforms := L.NewTable()

	L.SetField(transforms, "trim", L.NewFunction(luaTrim))
	L.SetField(transforms, "lower", L.NewFunction(luaLower))
	L.SetField(transforms, "parse_bool", L.NewFunction(luaParseBool))
	L.SetField(transforms, "parse_layer", L.NewFunction(luaParseLayer))
	L.SetField(transforms, "one_of", L.NewFunction(luaOneOf))
	L.SetField(transforms, "has_any", L.NewFunction(luaHasAny))

	mod, ok := L.GetGlobal("osm2tiles").(*lua.LTable)
	if !ok {
		mod = L.NewTable()
		L.SetGlobal("osm2tiles", mod)
	}
	L.SetField(mod, "transforms", transforms)

	// Also register common functions at top level for convenience
	L.SetGlobal("one_of", L.NewFunction(luaOneOf))
	L.SetGlobal("has_any", L.NewFunction(luaHasAny))
}

// luaTrim trims whitespace from a string
func luaTrim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

// luaLower converts string to lowercase
func luaLower(L *lua.LState) int {
	L.Push(lua.LString(strings.ToLower(L.CheckString(1))))
	return 1
}

// luaParseBool parses OSM boolean values. nil and "no"-like values are false.
func luaParseBool(L *lua.LState) int {
	s := strings.ToLower(strings.TrimSpace(L.OptString(1, "")))

	switch s {
	case "", "no", "false", "0", "off":
		L.Push(lua.LFalse)
	default:
		L.Push(lua.LTrue)
	}
	return 1
}

// luaParseLayer parses a layer tag, clamped to [-5, 5]
func luaParseLayer(L *lua.LState) int {
	layer, err := strconv.Atoi(strings.TrimSpace(L.OptString(1, "")))
	if err != nil {
		layer = 0
	}
	if layer < -5 {
		layer = -5
	}
	if layer > 5 {
		layer = 5
	}
	L.Push(lua.LNumber(layer))
	return 1
}

// luaOneOf reports whether the first argument equals any of the others:
// one_of(tags.highway, "motorway", "trunk")
func luaOneOf(L *lua.LState) int {
	v := L.Get(1)
	if v == lua.LNil {
		L.Push(lua.LFalse)
		return 1
	}
	for i := 2; i <= L.GetTop(); i++ {
		if L.Get(i).String() == v.String() {
			L.Push(lua.LTrue)
			return 1
		}
	}
	L.Push(lua.LFalse)
	return 1
}

// luaHasAny reports whether the tags table has any of the given keys:
// has_any(tags, "landuse", "natural")
func luaHasAny(L *lua.LState) int {
	tags := L.CheckTable(1)
	for i := 2; i <= L.GetTop(); i++ {
		if tags.RawGetString(L.CheckString(i)) != lua.LNil {
			L.Push(lua.LTrue)
			return 1
		}
	}
	L.Push(lua.LFalse)
	return 1
}
