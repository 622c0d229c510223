package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/vk/modgraph/internal/container"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/scanner"
)

var (
	rootStyle   = lipgloss.NewStyle().Bold(true)
	globalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	repeatStyle = lipgloss.NewStyle().Faint(true)
)

// Tree bootstraps the graph in preview mode and renders the import tree
// below the root module with each module's distance. A module already
// expanded higher in the tree is listed again without its imports.
func (a *App) Tree(ctx context.Context) (string, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	application, _, err := a.bootstrap(ctx, true, false)
	if err != nil {
		return "", err
	}

	seen := make(map[string]bool)
	t := tree.Root(rootStyle.Render(moduleLabel(application.Root())))
	seen[application.Root().Token()] = true
	addImports(t, application.Root(), seen)
	return t.String(), nil
}

func addImports(t *tree.Tree, m *container.Module, seen map[string]bool) {
	for _, imp := range m.Imports() {
		if imp.Metatype() == scanner.CoreModule {
			continue
		}
		label := moduleLabel(imp)
		if imp.IsGlobal() {
			label += globalStyle.Render(" [global]")
		}
		if seen[imp.Token()] {
			t.Child(label + repeatStyle.Render(" (see above)"))
			continue
		}
		seen[imp.Token()] = true
		child := tree.Root(label)
		addImports(child, imp, seen)
		t.Child(child)
	}
}

func moduleLabel(m *container.Module) string {
	return fmt.Sprintf("%s (distance %d)", m.Name(), m.Distance())
}
