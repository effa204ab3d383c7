// Package core tests include guard rails that enforce architectural
// constraints on the façade and its persistence backends.
package core

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"golang.org/x/tools/go/packages"
)

var (
	modulePkgsOnce sync.Once
	modulePkgs     []*packages.Package
	modulePkgsErr  error
)

func loadModulePackages(t *testing.T) []*packages.Package {
	t.Helper()
	modulePkgsOnce.Do(func() {
		cfg := &packages.Config{
			Mode:  packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedFiles,
			Tests: true,
		}
		modulePkgs, modulePkgsErr = packages.Load(cfg, "routingcore/...")
	})
	if modulePkgsErr != nil {
		t.Fatalf("load packages: %v", modulePkgsErr)
	}
	return modulePkgs
}

// TestNoTypeAliases ensures the core package never reintroduces type aliases
// over domain types; callers use pkg/domain directly.
func TestNoTypeAliases(t *testing.T) {
	var aliases []string
	for _, pkg := range loadModulePackages(t) {
		if pkg.PkgPath != "routingcore/internal/core" {
			continue
		}
		for _, file := range pkg.Syntax {
			for _, decl := range file.Decls {
				gen, ok := decl.(*ast.GenDecl)
				if !ok || gen.Tok != token.TYPE {
					continue
				}
				for _, spec := range gen.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok || !ts.Assign.IsValid() {
						continue
					}
					pos := pkg.Fset.Position(ts.Pos())
					aliases = append(aliases, fmt.Sprintf("%s:%d type %s", filepath.Base(pos.Filename), pos.Line, ts.Name.Name))
				}
			}
		}
	}
	if len(aliases) > 0 {
		t.Fatalf("type aliases are forbidden in internal/core; found %d:\n%s", len(aliases), strings.Join(aliases, "\n"))
	}
}

// TestPersistentStoreImplementationsHardening ensures only sanctioned
// persistence packages provide concrete implementations of
// domain.PersistentStore. Test doubles are exempt.
func TestPersistentStoreImplementationsHardening(t *testing.T) {
	pkgs := loadModulePackages(t)
	var persistentStore *types.Interface
	for _, p := range pkgs {
		if p.PkgPath != "routingcore/pkg/domain" || p.Types == nil {
			continue
		}
		obj := p.Types.Scope().Lookup("PersistentStore")
		if obj == nil {
			t.Fatalf("domain.PersistentStore not found")
		}
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			t.Fatalf("domain.PersistentStore is not an interface")
		}
		persistentStore = iface
		break
	}
	if persistentStore == nil {
		t.Fatalf("failed to resolve PersistentStore interface")
	}
	allowed := map[string]struct{}{
		"routingcore/internal/infra/persistence/memory":   {},
		"routingcore/internal/infra/persistence/sqlite":   {},
		"routingcore/internal/infra/persistence/postgres": {},
	}
	seen := map[string]struct{}{}
	var unexpected []string
	for _, p := range pkgs {
		if p.Types == nil || p.Types.Scope() == nil {
			continue
		}
		for _, name := range p.Types.Scope().Names() {
			obj := p.Types.Scope().Lookup(name)
			if strings.HasSuffix(p.Fset.Position(obj.Pos()).Filename, "_test.go") {
				continue
			}
			named, ok := obj.Type().(*types.Named)
			if !ok {
				continue
			}
			if _, ok := named.Underlying().(*types.Struct); !ok {
				continue
			}
			if !types.Implements(types.NewPointer(named), persistentStore) {
				continue
			}
			if _, ok := allowed[p.PkgPath]; ok {
				continue
			}
			key := p.PkgPath + "." + name
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		t.Fatalf("unexpected PersistentStore implementations (update the allowed list when adding a backend):\n%s", strings.Join(unexpected, "\n"))
	}
}
