// Command sqllint fails when a SQL string constant lacks the --sql <uuid>
// marker that infra.SQLRunner uses to label statements in the logs, reuses
// another constant's marker, or is not named with the Q prefix.
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

var (
	sqlKeyword = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter)\b`)
	markerLine = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

func main() {
	flags := pflag.NewFlagSet("sqllint", pflag.ExitOnError)
	skipTests := flags.Bool("skip-tests", true, "ignore _test.go files")
	_ = flags.Parse(os.Args[1:])

	targets := flags.Args()
	if len(targets) == 0 {
		targets = []string{"internal/sqlinline"}
	}
	os.Exit(run(targets, *skipTests, os.Stderr))
}

type finding struct {
	pos     token.Position
	name    string
	problem string
}

type linter struct {
	skipTests bool
	fset      *token.FileSet
	// owners maps each marker to the first constant that used it.
	owners   map[string]string
	findings []finding
}

func run(targets []string, skipTests bool, stderr io.Writer) int {
	l := &linter{skipTests: skipTests, fset: token.NewFileSet(), owners: map[string]string{}}
	for _, target := range targets {
		if err := l.walk(target); err != nil {
			fmt.Fprintf(stderr, "sqllint: %v\n", err)
			return 1
		}
	}
	if len(l.findings) == 0 {
		return 0
	}
	fmt.Fprintln(stderr, "sqllint: SQL audit marker violations")
	for _, f := range l.findings {
		fmt.Fprintf(stderr, "  %s:%d %s (%s)\n", f.pos.Filename, f.pos.Line, f.problem, f.name)
	}
	return 1
}

func (l *linter) walk(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || (l.skipTests && strings.HasSuffix(path, "_test.go")) {
			return nil
		}
		return l.file(path)
	})
}

func (l *linter) file(path string) error {
	f, err := parser.ParseFile(l.fset, path, nil, 0)
	if err != nil {
		return err
	}
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || (gen.Tok != token.CONST && gen.Tok != token.VAR) {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, value := range vs.Values {
				if i < len(vs.Names) {
					l.value(vs.Names[i].Name, value)
				}
			}
		}
	}
	return nil
}

func (l *linter) value(name string, expr ast.Expr) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return
	}
	text, err := stringValue(lit.Value)
	if err != nil || !sqlKeyword.MatchString(text) {
		return
	}
	report := func(problem string) {
		l.findings = append(l.findings, finding{pos: l.fset.Position(lit.Pos()), name: name, problem: problem})
	}

	marker, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	marker = strings.TrimSpace(marker)
	switch owner, taken := l.owners[marker]; {
	case !markerLine.MatchString(marker):
		report("missing or invalid --sql <uuid> marker")
		return
	case taken:
		report("marker already used by " + owner)
		return
	}
	l.owners[marker] = name
	if !strings.HasPrefix(name, "Q") {
		report("sql constant name should start with Q")
	}
}

func stringValue(lit string) (string, error) {
	if strings.HasPrefix(lit, "`") {
		return strings.Trim(lit, "`"), nil
	}
	return strconv.Unquote(lit)
}
