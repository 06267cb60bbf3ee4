package tools

import "fmt"

// Factory builds the tools for one category given the sandbox they'll
// validate paths against. Called once per Registry.Build.
type Factory func(sandbox *Sandbox) []Tool

// entry pairs a category with the factory that builds its tools. Kept in
// insertion order (a plain slice, not a map) so builds are deterministic.
type entry struct {
	category Category
	factory  Factory
}

// Registry holds the catalog of {category, factory} entries registered at
// startup via RegisterAll. It has no global state — construction is
// explicit, so the same catalog can be built against different sandboxes in
// tests without import side effects.
type Registry struct {
	entries []entry
}

// NewRegistry returns an empty registry; call RegisterAll to populate it
// with every built-in category.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds one category's factory to the catalog.
func (r *Registry) Register(category Category, factory Factory) {
	r.entries = append(r.entries, entry{category: category, factory: factory})
}

// alwaysOn categories load regardless of AgentConfig toggles.
var alwaysOn = map[Category]bool{
	CategoryProcesses: true,
	CategoryPackages:  true,
	CategorySystem:    true,
	CategoryBrowser:   true,
}

// Build runs every registered factory whose category is enabled — toggled
// categories are checked against enables; always-on categories load
// unconditionally — and returns the merged {name: Tool} map. A duplicate
// tool name across categories is a programming error and panics, since it
// can only happen from a bug in the registration list, never from runtime
// input.
func (r *Registry) Build(sandbox *Sandbox, enables CategoryEnables) map[string]Tool {
	built := make(map[string]Tool)

	for _, e := range r.entries {
		if !alwaysOn[e.category] && !categoryEnabled(e.category, enables) {
			continue
		}
		for _, tool := range e.factory(sandbox) {
			if _, dup := built[tool.Name]; dup {
				panic(fmt.Sprintf("tools: duplicate tool name %q registered by category %q", tool.Name, e.category))
			}
			built[tool.Name] = tool
		}
	}

	return built
}

func categoryEnabled(c Category, enables CategoryEnables) bool {
	switch c {
	case CategoryFilesystem:
		return enables.Filesystem
	case CategoryShell:
		return enables.Shell
	case CategoryGit:
		return enables.Git
	case CategoryNetwork:
		return enables.Network
	default:
		return true
	}
}

// RegisterAll populates r with every built-in category's factory. Called
// once at startup.
func RegisterAll(r *Registry) {
	r.Register(CategoryFilesystem, NewFilesystemTools)
	r.Register(CategoryShell, NewShellTools)
	r.Register(CategoryGit, NewGitTools)
	r.Register(CategoryNetwork, NewNetworkTools)
	r.Register(CategoryProcesses, NewProcessTools)
	r.Register(CategoryPackages, NewPackageTools)
	r.Register(CategorySystem, NewSystemTools)
	r.Register(CategoryBrowser, NewBrowserTools)
}
