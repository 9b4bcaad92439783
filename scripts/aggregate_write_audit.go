package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// aggregate_write_audit reports service methods that write through repos instead of the
// lifecycle aggregate. With -max-repo-writes it fails when the count exceeds the limit.

type methodStats struct {
	StructName          string   `json:"struct_name"`
	Method              string   `json:"method"`
	File                string   `json:"file"`
	Line                int      `json:"line"`
	RepoWriteCalls      []string `json:"repo_write_calls,omitempty"`
	AggregateWriteCalls []string `json:"aggregate_write_calls,omitempty"`
}

type auditReport struct {
	RepoWriteCallsites      int           `json:"repo_write_callsites"`
	AggregateWriteCallsites int           `json:"aggregate_write_callsites"`
	RepoWriters             []methodStats `json:"repo_writers"`
	AggregateWriters        []methodStats `json:"aggregate_writers"`
}

var repoWriteMethods = map[string]bool{
	"Create":       true,
	"UpdateFields": true,
	"Upsert":       true,
	"ApplyGrade":   true,
	"LockByID":     true,
}

var aggregateWriteMethods = map[string]bool{
	"CreateExam":        true,
	"StartExam":         true,
	"SaveAnswer":        true,
	"SubmitExam":        true,
	"CommitGrading":     true,
	"MarkGradingFailed": true,
	"ExpireOverdue":     true,
}

// fieldKinds maps a struct field name to "repo" or "aggregate".
type fieldKinds map[string]string

func main() {
	root := flag.String("root", ".", "module root")
	maxRepoWrites := flag.Int("max-repo-writes", -1, "fail when repo write callsites exceed this; negative disables")
	flag.Parse()

	report, err := audit(filepath.Join(*root, "internal", "services"), *root)
	if err != nil {
		exitf("%v", err)
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))
	if *maxRepoWrites >= 0 && report.RepoWriteCallsites > *maxRepoWrites {
		exitf("repo write callsites %d exceed limit %d", report.RepoWriteCallsites, *maxRepoWrites)
	}
}

func audit(dir, root string) (auditReport, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(fi os.FileInfo) bool {
		name := fi.Name()
		return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
	}, 0)
	if err != nil {
		return auditReport{}, fmt.Errorf("parse dir: %w", err)
	}

	kinds := fieldKinds{}
	for _, pkg := range pkgs {
		for _, f := range pkg.Files {
			collectFieldKinds(f, kinds)
		}
	}

	var methods []methodStats
	for _, pkg := range pkgs {
		for path, f := range pkg.Files {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			methods = append(methods, collectMethods(fset, f, filepath.ToSlash(rel), kinds)...)
		}
	}
	return buildReport(methods), nil
}

func collectFieldKinds(file *ast.File, out fieldKinds) {
	ast.Inspect(file, func(n ast.Node) bool {
		st, ok := n.(*ast.StructType)
		if !ok || st.Fields == nil {
			return true
		}
		for _, field := range st.Fields.List {
			sel, ok := field.Type.(*ast.SelectorExpr)
			if !ok {
				continue
			}
			pkgIdent, ok := sel.X.(*ast.Ident)
			if !ok {
				continue
			}
			kind := ""
			switch {
			case pkgIdent.Name == "repos" && strings.HasSuffix(sel.Sel.Name, "Repo"):
				kind = "repo"
			case pkgIdent.Name == "domainagg" && strings.HasSuffix(sel.Sel.Name, "Aggregate"):
				kind = "aggregate"
			default:
				continue
			}
			for _, name := range field.Names {
				out[name.Name] = kind
			}
		}
		return true
	})
}

func collectMethods(fset *token.FileSet, file *ast.File, relFile string, kinds fieldKinds) []methodStats {
	var out []methodStats
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || fd.Body == nil || len(fd.Recv.List) == 0 {
			continue
		}
		recvType := recvTypeName(fd.Recv.List[0])
		if recvType == "" {
			continue
		}
		m := methodStats{
			StructName: recvType,
			Method:     fd.Name.Name,
			File:       relFile,
			Line:       fset.Position(fd.Pos()).Line,
		}
		ast.Inspect(fd.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			fnSel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			owner, ok := fnSel.X.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			field, method := owner.Sel.Name, fnSel.Sel.Name
			switch kinds[field] {
			case "repo":
				if repoWriteMethods[method] {
					m.RepoWriteCalls = append(m.RepoWriteCalls, field+"."+method)
				}
			case "aggregate":
				if aggregateWriteMethods[method] {
					m.AggregateWriteCalls = append(m.AggregateWriteCalls, field+"."+method)
				}
			}
			return true
		})
		if len(m.RepoWriteCalls) > 0 || len(m.AggregateWriteCalls) > 0 {
			out = append(out, m)
		}
	}
	return out
}

func buildReport(methods []methodStats) auditReport {
	sort.Slice(methods, func(i, j int) bool {
		if methods[i].File == methods[j].File {
			return methods[i].Line < methods[j].Line
		}
		return methods[i].File < methods[j].File
	})
	var r auditReport
	for _, m := range methods {
		if n := len(m.RepoWriteCalls); n > 0 {
			r.RepoWriteCallsites += n
			r.RepoWriters = append(r.RepoWriters, m)
		}
		if n := len(m.AggregateWriteCalls); n > 0 {
			r.AggregateWriteCallsites += n
			r.AggregateWriters = append(r.AggregateWriters, m)
		}
	}
	return r
}

func recvTypeName(field *ast.Field) string {
	switch t := field.Type.(type) {
	case *ast.StarExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
