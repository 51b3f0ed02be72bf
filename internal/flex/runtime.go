// Package flex runs Lua style scripts that decide which ways are kept and
// which categories they are drawn in.
//
// A script may define either hook on the osm2tiles table:
//
//	function osm2tiles.include_way(tags) return tags.highway ~= nil end
//	function osm2tiles.classify(tags) return { "highwayA" } end
//
// An undefined hook falls back to the built-in policy, which scripts can
// also call as osm2tiles.default_include and osm2tiles.default_classify.
package flex

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2tiles-go/internal/feature"
	"github.com/wegman-software/osm2tiles-go/internal/logger"
)

// Classifier is a feature.WayClassifier backed by a Lua state.
// A Lua state is single threaded, so a Classifier must not be shared
// between goroutines.
type Classifier struct {
	L          *lua.LState
	policy     *feature.Policy
	includeWay lua.LValue
	classify   lua.LValue
	log        *zap.Logger
}

// NewClassifier creates a Lua state with the osm2tiles API. A nil policy
// uses feature.DefaultPolicy.
func NewClassifier(policy *feature.Policy) *Classifier {
	if policy == nil {
		policy = feature.DefaultPolicy()
	}

	c := &Classifier{
		L:      lua.NewState(),
		policy: policy,
		log:    logger.Get(),
	}
	c.registerAPI()
	return c
}

// Close releases Lua resources
func (c *Classifier) Close() {
	c.L.Close()
}

// registerAPI registers the osm2tiles Lua API
func (c *Classifier) registerAPI() {
	mod := c.L.NewTable()

	categories := c.L.NewTable()
	for _, cat := range feature.All() {
		categories.Append(lua.LString(cat.String()))
	}
	mod.RawSetString("categories", categories)

	c.L.SetField(mod, "default_include", c.L.NewFunction(c.luaDefaultInclude))
	c.L.SetField(mod, "default_classify", c.L.NewFunction(c.luaDefaultClassify))
	c.L.SetField(mod, "highway_rank", c.L.NewFunction(c.luaHighwayRank))

	c.L.SetGlobal("osm2tiles", mod)

	RegisterTransforms(c.L)

	c.L.SetGlobal("print", c.L.NewFunction(c.luaPrint))
}

// LoadFile loads and executes a Lua style file
func (c *Classifier) LoadFile(path string) error {
	if err := c.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load Lua file: %w", err)
	}
	c.extractCallbacks()
	return nil
}

// LoadString loads and executes Lua code from a string
func (c *Classifier) LoadString(code string) error {
	if err := c.L.DoString(code); err != nil {
		return fmt.Errorf("failed to load Lua code: %w", err)
	}
	c.extractCallbacks()
	return nil
}

// extractCallbacks picks the hooks up from the osm2tiles table
func (c *Classifier) extractCallbacks() {
	mod, ok := c.L.GetGlobal("osm2tiles").(*lua.LTable)
	if !ok {
		return
	}
	c.includeWay = mod.RawGetString("include_way")
	c.classify = mod.RawGetString("classify")
}

// HasIncludeWay returns true if the script defines include_way
func (c *Classifier) HasIncludeWay() bool {
	return c.includeWay != nil && c.includeWay.Type() == lua.LTFunction
}

// HasClassify returns true if the script defines classify
func (c *Classifier) HasClassify() bool {
	return c.classify != nil && c.classify.Type() == lua.LTFunction
}

// ClassifyWay implements feature.WayClassifier.
func (c *Classifier) ClassifyWay(tags map[string]string) (feature.Set, bool, error) {
	include, err := c.IncludeWay(tags)
	if err != nil || !include {
		return 0, false, err
	}
	set, err := c.Classify(tags)
	if err != nil {
		return 0, false, err
	}
	return set, true, nil
}

// IncludeWay calls include_way, or the policy if the hook is not defined.
func (c *Classifier) IncludeWay(tags map[string]string) (bool, error) {
	if !c.HasIncludeWay() {
		return c.policy.IncludeWay(tags), nil
	}

	ret, err := c.call(c.includeWay, tags)
	if err != nil {
		return false, fmt.Errorf("include_way: %w", err)
	}
	return lua.LVAsBool(ret), nil
}

// Classify calls classify, or the policy if the hook is not defined.
// The hook may return a category name, a list of names, or nil.
func (c *Classifier) Classify(tags map[string]string) (feature.Set, error) {
	if !c.HasClassify() {
		return c.policy.Classify(tags), nil
	}

	ret, err := c.call(c.classify, tags)
	if err != nil {
		return 0, fmt.Errorf("classify: %w", err)
	}

	set, err := toSet(ret)
	if err != nil {
		return 0, fmt.Errorf("classify: %w", err)
	}
	return set, nil
}

// call invokes fn with a tags table and returns its first result
func (c *Classifier) call(fn lua.LValue, tags map[string]string) (lua.LValue, error) {
	if err := c.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, tagsToLua(c.L, tags)); err != nil {
		return lua.LNil, fmt.Errorf("lua callback error: %w", err)
	}

	ret := c.L.Get(-1)
	c.L.Pop(1)
	return ret, nil
}

// toSet converts a classify result to a category set
func toSet(v lua.LValue) (feature.Set, error) {
	var set feature.Set

	add := func(name lua.LValue) error {
		s, ok := name.(lua.LString)
		if !ok {
			return fmt.Errorf("category must be a string, got %s", name.Type())
		}
		cat, err := feature.ParseCategory(string(s))
		if err != nil {
			return err
		}
		set = set.Add(cat)
		return nil
	}

	switch v.Type() {
	case lua.LTNil:
		return 0, nil
	case lua.LTString:
		return set, add(v)
	case lua.LTTable:
		var err error
		v.(*lua.LTable).ForEach(func(_, name lua.LValue) {
			if err == nil {
				err = add(name)
			}
		})
		return set, err
	default:
		return 0, fmt.Errorf("classify must return a string or a table, got %s", v.Type())
	}
}

// tagsToLua converts tags to a Lua table
func tagsToLua(L *lua.LState, tags map[string]string) *lua.LTable {
	tbl := L.CreateTable(0, len(tags))
	for k, v := range tags {
		tbl.RawSetString(k, lua.LString(v))
	}
	return tbl
}

// tagsFromLua converts a Lua table of string pairs to tags
func tagsFromLua(tbl *lua.LTable) map[string]string {
	tags := make(map[string]string)
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			tags[string(ks)] = v.String()
		}
	})
	return tags
}

// luaDefaultInclude implements osm2tiles.default_include(tags)
func (c *Classifier) luaDefaultInclude(L *lua.LState) int {
	tags := tagsFromLua(L.CheckTable(1))
	L.Push(lua.LBool(c.policy.IncludeWay(tags)))
	return 1
}

// luaDefaultClassify implements osm2tiles.default_classify(tags)
func (c *Classifier) luaDefaultClassify(L *lua.LState) int {
	tags := tagsFromLua(L.CheckTable(1))
	result := L.NewTable()
	for _, cat := range c.policy.Classify(tags).Categories() {
		result.Append(lua.LString(cat.String()))
	}
	L.Push(result)
	return 1
}

// luaHighwayRank implements osm2tiles.highway_rank(tags)
func (c *Classifier) luaHighwayRank(L *lua.LState) int {
	tags := tagsFromLua(L.CheckTable(1))
	L.Push(lua.LNumber(c.policy.HighwayRank(tags)))
	return 1
}

// luaPrint sends script output to the debug log
func (c *Classifier) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	c.log.Debug("lua", zap.String("message", strings.Join(parts, "\t")))
	return 0
}
