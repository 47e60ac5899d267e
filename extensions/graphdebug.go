package extensions

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/m1gwings/treedrawer/tree"

	kiln "github.com/kiln-fn/kiln-go"
)

// GraphDebugExtension logs a dependency graph rendering when resolution
// fails.
//
// Usage:
//
//	// Readable output
//	ext := extensions.NewGraphDebugExtension(slog.NewTextHandler(os.Stderr, nil))
//
//	// Silent (for testing)
//	ext := extensions.NewGraphDebugExtension(extensions.NewSilentHandler())
//
// The extension logs at ERROR level with the rendered graph attached.
type GraphDebugExtension struct {
	kiln.BaseExtension
	logger *slog.Logger
}

// NewGraphDebugExtension creates a graph debug extension over the given
// slog handler.
func NewGraphDebugExtension(handler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{
		BaseExtension: kiln.NewBaseExtension("graph-debug"),
		logger:        slog.New(handler),
	}
}

// OnError renders the observed dependency graph when an operation fails.
func (e *GraphDebugExtension) OnError(err error, op *kiln.Operation, c *kiln.Container) {
	e.logger.Error("dependency resolution error",
		"op", string(op.Kind),
		"key", op.Key,
		"container", c.ID(),
		"error", err.Error(),
		"dependency_graph", RenderGraph(c),
	)
}

// RenderGraph draws the container's observed dependency graph as one tree
// per root key. Roots are keys that no other key depends on.
func RenderGraph(c *kiln.Container) string {
	graph := c.DepGraph()
	if len(graph) == 0 {
		return "(empty - no dependencies observed)"
	}

	isDep := make(map[string]bool)
	for _, deps := range graph {
		for _, d := range deps {
			isDep[d] = true
		}
	}

	var roots []string
	for key := range graph {
		if !isDep[key] {
			roots = append(roots, key)
		}
	}
	if len(roots) == 0 {
		// Everything is somebody's dependency: cross-call cycle. Draw from
		// every key so nothing is hidden.
		for key := range graph {
			roots = append(roots, key)
		}
	}
	sort.Strings(roots)

	var sb strings.Builder
	for _, root := range roots {
		t := tree.NewTree(tree.NodeString(root))
		addChildren(t, root, graph, map[string]bool{root: true})
		sb.WriteString("\n")
		sb.WriteString(t.String())
	}
	return sb.String()
}

func addChildren(t *tree.Tree, key string, graph map[string][]string, seen map[string]bool) {
	for _, dep := range graph[key] {
		if seen[dep] {
			t.AddChild(tree.NodeString(dep + " (cycle)"))
			continue
		}
		seen[dep] = true
		child := t.AddChild(tree.NodeString(dep))
		addChildren(child, dep, graph, seen)
	}
}

// SilentHandler is a slog.Handler that discards all log output. Useful for
// testing when you don't want log output.
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler.
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}
