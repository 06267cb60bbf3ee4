package tools

import "testing"

func TestRegistry_BuildHonorsCategoryToggles(t *testing.T) {
	sb := newTestSandbox(t)
	r := NewRegistry()
	RegisterAll(r)

	built := r.Build(sb, CategoryEnables{})

	if _, ok := built["read_file"]; ok {
		t.Fatal("filesystem tool present despite disabled category")
	}
	if _, ok := built["run_command"]; ok {
		t.Fatal("shell tool present despite disabled category")
	}
	if _, ok := built["git_status"]; ok {
		t.Fatal("git tool present despite disabled category")
	}
	if _, ok := built["http_request"]; ok {
		t.Fatal("network tool present despite disabled category")
	}
}

func TestRegistry_AlwaysOnCategoriesLoadRegardless(t *testing.T) {
	sb := newTestSandbox(t)
	r := NewRegistry()
	RegisterAll(r)

	built := r.Build(sb, CategoryEnables{})

	for _, name := range []string{"process_list", "npm_install", "notify", "navigate"} {
		if _, ok := built[name]; !ok {
			t.Fatalf("expected always-on tool %q to be present", name)
		}
	}
}

func TestRegistry_BuildIncludesEnabledCategories(t *testing.T) {
	sb := newTestSandbox(t)
	r := NewRegistry()
	RegisterAll(r)

	built := r.Build(sb, CategoryEnables{
		Filesystem: true,
		Shell:      true,
		Git:        true,
		Network:    true,
	})

	for _, name := range []string{"read_file", "run_command", "git_status", "http_request"} {
		if _, ok := built[name]; !ok {
			t.Fatalf("expected enabled-category tool %q to be present", name)
		}
	}
}

func TestRegistry_BuildPanicsOnDuplicateName(t *testing.T) {
	r := NewRegistry()
	dupFactory := func(sandbox *Sandbox) []Tool {
		return []Tool{{Name: "dup"}}
	}
	r.Register(CategorySystem, dupFactory)
	r.Register(CategoryBrowser, dupFactory)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate tool name")
		}
	}()
	r.Build(newTestSandbox(t), CategoryEnables{})
}

func TestRegistry_EmptyRegistryBuildsNoTools(t *testing.T) {
	r := NewRegistry()
	built := r.Build(newTestSandbox(t), CategoryEnables{Filesystem: true})
	if len(built) != 0 {
		t.Fatalf("expected no tools, got %d", len(built))
	}
}
