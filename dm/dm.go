// Package dm implements the parameter-tree dispatcher. The tree is a
// flat registry of named subtree handlers; each handler implements the
// capabilities it supports (Getter always, Setter and Operator when
// meaningful) and owns its backing values, which may be live device
// state read on demand.
package dm

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/acsense/uspagent/wire"
)

// Getter resolves a parameter path inside one subtree. path is the full
// requested path; the returned map is full-path keyed. A nil map with a
// nil error means the subtree does not serve the path; an empty non-nil
// map is an empty object.
type Getter interface {
	Get(path string) (map[string]string, error)
}

// Setter writes a single parameter. Handlers that do not implement it
// are read-only subtrees.
type Setter interface {
	Set(path, value string) error
}

// ObjectSetter receives all parameters of one update object together.
// Handlers that need the whole object atomically (credential material)
// implement it; the dispatcher prefers it over per-parameter Set.
type ObjectSetter interface {
	SetObject(objPath string, params map[string]string) error
}

// Operator executes a named invocable addressed by full command path.
type Operator interface {
	Operate(command string, args map[string]string) (map[string]string, error)
}

// ErrCommandNotFound reports an OPERATE path no handler claims.
var ErrCommandNotFound = fmt.Errorf("dm: command not found")

// Dispatcher routes path expressions to registered subtree handlers and
// assembles protocol result structures. The registry is built once at
// startup and read-only afterwards.
type Dispatcher struct {
	handlers  map[string]Getter
	selectors []string // sorted longest-first for prefix resolution
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Getter)}
}

// Register binds a subtree selector such as "Device.DeviceInfo." to a
// handler. Longest-selector wins when selectors nest.
func (d *Dispatcher) Register(selector string, h Getter) {
	d.handlers[selector] = h
	d.selectors = append(d.selectors, selector)
	sort.Slice(d.selectors, func(i, j int) bool {
		return len(d.selectors[i]) > len(d.selectors[j])
	})
}

func (d *Dispatcher) resolve(path string) (Getter, bool) {
	for _, sel := range d.selectors {
		if strings.HasPrefix(path, sel) {
			return d.handlers[sel], true
		}
	}
	return nil, false
}

// Get resolves each requested path independently: an unregistered or
// failing path yields an error entry scoped to that path and never
// disturbs its siblings. maxDepth bounds expansion below each requested
// path in segments; 0 returns the requested path only.
func (d *Dispatcher) Get(paths []string, maxDepth uint32) []wire.RequestedPathResult {
	results := make([]wire.RequestedPathResult, 0, len(paths))
	for _, path := range paths {
		results = append(results, d.getOne(path, maxDepth))
	}
	return results
}

func (d *Dispatcher) getOne(path string, maxDepth uint32) wire.RequestedPathResult {
	h, ok := d.resolve(path)
	if !ok {
		slog.Warn("get: unknown parameter path", "path", path)
		return wire.RequestedPathResult{
			RequestedPath: path,
			ErrCode:       wire.ErrCodeInvalidPath,
			ErrMsg:        fmt.Sprintf("unknown path %s", path),
		}
	}
	params, err := h.Get(path)
	if err != nil {
		slog.Warn("get: handler failed", "path", path, "error", err)
		return wire.RequestedPathResult{
			RequestedPath: path,
			ErrCode:       wire.ErrCodeInternalError,
			ErrMsg:        err.Error(),
		}
	}
	// A nil map means the handler does not know the path; an empty
	// non-nil map is a legitimately empty object.
	if params == nil {
		slog.Warn("get: path not served by its subtree", "path", path)
		return wire.RequestedPathResult{
			RequestedPath: path,
			ErrCode:       wire.ErrCodeInvalidPath,
			ErrMsg:        fmt.Sprintf("unknown path %s", path),
		}
	}
	params = filterDepth(path, params, maxDepth)
	return wire.RequestedPathResult{
		RequestedPath: path,
		ResolvedPathResults: []wire.ResolvedPathResult{{
			ResolvedPath: path,
			ResultParams: params,
		}},
	}
}

// filterDepth drops parameters deeper than maxDepth segments below the
// requested path. Depth is counted in dot-separated segments; 0 keeps
// only parameters at the requested path's own depth.
func filterDepth(requested string, params map[string]string, maxDepth uint32) map[string]string {
	limit := segCount(requested) + int(maxDepth)
	out := make(map[string]string, len(params))
	for k, v := range params {
		if segCount(k) <= limit {
			out[k] = v
		}
	}
	return out
}

func segCount(path string) int {
	n := 0
	for _, seg := range strings.Split(path, ".") {
		if seg != "" {
			n++
		}
	}
	return n
}

// Set applies each update object independently and reports one result
// per object path. Failures carry a reason and never abort the batch.
func (d *Dispatcher) Set(updates []wire.UpdateObject) []wire.UpdatedObjectResult {
	results := make([]wire.UpdatedObjectResult, 0, len(updates))
	for _, obj := range updates {
		results = append(results, d.setOne(obj))
	}
	return results
}

func (d *Dispatcher) setOne(obj wire.UpdateObject) wire.UpdatedObjectResult {
	fail := func(code uint32, msg string) wire.UpdatedObjectResult {
		slog.Warn("set failed", "obj_path", obj.ObjPath, "error", msg)
		return wire.UpdatedObjectResult{RequestedPath: obj.ObjPath, ErrCode: code, ErrMsg: msg}
	}

	h, ok := d.resolve(obj.ObjPath)
	if !ok {
		return fail(wire.ErrCodeInvalidPath, fmt.Sprintf("unknown path %s", obj.ObjPath))
	}

	updated := make(map[string]string, len(obj.ParamSettings))

	if os, ok := h.(ObjectSetter); ok {
		params := make(map[string]string, len(obj.ParamSettings))
		for _, ps := range obj.ParamSettings {
			params[ps.Param] = ps.Value
		}
		if err := os.SetObject(obj.ObjPath, params); err != nil {
			return fail(wire.ErrCodeSetFailure, err.Error())
		}
		for _, ps := range obj.ParamSettings {
			updated[obj.ObjPath+ps.Param] = ps.Value
		}
		return wire.UpdatedObjectResult{RequestedPath: obj.ObjPath, UpdatedParams: updated}
	}

	setter, ok := h.(Setter)
	if !ok {
		return fail(wire.ErrCodeSetFailure, fmt.Sprintf("%s is read-only", obj.ObjPath))
	}
	for _, ps := range obj.ParamSettings {
		full := obj.ObjPath + ps.Param
		if err := setter.Set(full, ps.Value); err != nil {
			return fail(wire.ErrCodeSetFailure, fmt.Sprintf("%s: %v", full, err))
		}
		updated[full] = ps.Value
	}
	return wire.UpdatedObjectResult{RequestedPath: obj.ObjPath, UpdatedParams: updated}
}

// Operate dispatches a command by full path match. ErrCommandNotFound
// is returned for paths no handler claims; any other error is the
// invocable's own failure and belongs in the operation result, not at
// the protocol level.
func (d *Dispatcher) Operate(command string, args map[string]string) (map[string]string, error) {
	h, ok := d.resolve(command)
	if !ok {
		return nil, ErrCommandNotFound
	}
	op, ok := h.(Operator)
	if !ok {
		return nil, ErrCommandNotFound
	}
	return op.Operate(command, args)
}
