package spec

import (
	"sort"
	"strings"
	"text/template"
	"text/template/parse"

	batchv1 "k8s.io/api/batch/v1"
	"sigs.k8s.io/yaml"

	"jobforge/internal/apperrors"
)

// parseTemplate compiles a job spec template with strict binding: rendering
// fails when the template references a variable the caller did not provide.
func parseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, apperrors.Parse(name, err)
	}
	return tmpl, nil
}

// renderJob executes a compiled template with the given arguments and decodes
// the result into a typed job. Unused arguments are allowed; missing ones are
// a template error, and malformed output is a parse error.
func renderJob(tmpl *template.Template, args map[string]string) (*batchv1.Job, error) {
	if args == nil {
		args = map[string]string{}
	}

	var rendered strings.Builder
	if err := tmpl.Execute(&rendered, args); err != nil {
		return nil, apperrors.Template(tmpl.Name(), err)
	}

	return decodeJob(tmpl.Name(), []byte(rendered.String()))
}

func decodeJob(name string, data []byte) (*batchv1.Job, error) {
	var job batchv1.Job
	if err := yaml.UnmarshalStrict(data, &job); err != nil {
		return nil, apperrors.Parse(name, err)
	}
	return &job, nil
}

// templateVars walks the parse tree and returns the sorted set of variable
// names the template references.
func templateVars(tmpl *template.Template) []string {
	seen := map[string]struct{}{}
	for _, t := range tmpl.Templates() {
		if t.Tree != nil && t.Tree.Root != nil {
			collectVars(t.Tree.Root, seen)
		}
	}

	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

func collectVars(node parse.Node, seen map[string]struct{}) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			collectVars(child, seen)
		}
	case *parse.ActionNode:
		collectVars(n.Pipe, seen)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			collectVars(cmd, seen)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			collectVars(arg, seen)
		}
	case *parse.FieldNode:
		if len(n.Ident) > 0 {
			seen[n.Ident[0]] = struct{}{}
		}
	case *parse.IfNode:
		collectBranchVars(&n.BranchNode, seen)
	case *parse.RangeNode:
		collectBranchVars(&n.BranchNode, seen)
	case *parse.WithNode:
		collectBranchVars(&n.BranchNode, seen)
	case *parse.TemplateNode:
		collectVars(n.Pipe, seen)
	}
}

func collectBranchVars(n *parse.BranchNode, seen map[string]struct{}) {
	collectVars(n.Pipe, seen)
	collectVars(n.List, seen)
	if n.ElseList != nil {
		collectVars(n.ElseList, seen)
	}
}
