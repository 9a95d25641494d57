package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dianpeng/colgen/cg"
	"github.com/dianpeng/colgen/exec"
	"github.com/dianpeng/colgen/plan"
	"github.com/dianpeng/colgen/scan"
	"github.com/dianpeng/colgen/vector"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type stageError struct {
	stage string
	err   error
}

func (self *stageError) Error() string { return self.err.Error() }
func (self *stageError) Unwrap() error { return self.err }

func staged(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &stageError{stage: stage, err: err}
}

func stageOf(err error) string {
	var s *stageError
	if errors.As(err, &s) {
		return s.stage
	}
	return "colgen"
}

var (
	renderCompare bool
	renderGeneric bool
	renderMerged  bool
)

var renderCmd = &cobra.Command{
	Use:   "render [expression...]",
	Short: "Print the unit generated for a predicate or for sort keys",
	Long: `Print the Go source generated for a filter predicate, or with --compare
for a comparator over the given keys. A key ending with "desc" sorts in
descending order.`,
	Example: `  colgen render -s "a:int?, b:bigint" "a == b and b < 10"
  colgen render -s "a:int?, b:bigint" --compare "a" "b desc"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRender,
}

var filterCmd = &cobra.Command{
	Use:   "filter [file] [predicate]",
	Short: "Print the rows of a delimited file matching a predicate",
	Args:  cobra.ExactArgs(2),
	RunE:  runFilter,
}

var sortCmd = &cobra.Command{
	Use:   "sort [file] [key...]",
	Short: "Print the rows of a delimited file ordered by keys",
	Long: `Print the rows of a delimited file ordered by keys. Rows whose keys
compare as unknown, ie null on one side, keep their input order.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSort,
}

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the function catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv()
		if err != nil {
			return staged("env", err)
		}
		out := cmd.OutOrStdout()
		for _, n := range env.Registry.Names() {
			for _, o := range env.Registry.Overloads(n) {
				parts := make([]string, 0, len(o))
				for _, t := range o {
					parts = append(parts, t.String())
				}
				fmt.Fprintf(out, "%s(%s)\n", n, strings.Join(parts, ", "))
			}
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().BoolVar(&renderCompare, "compare", false, "Arguments are sort keys of a comparator")
	renderCmd.Flags().BoolVar(&renderGeneric, "generic", false, "Print the generified source used as cache key")
	renderCmd.Flags().BoolVar(&renderMerged, "merged", false, "Print the source the merge strategy loads")
}

// parseKeys binds every "expression [asc|desc]" argument
func parseKeys(args []string, schema *vector.Schema, env *exec.Env) ([]exec.Key, error) {
	out := make([]exec.Key, 0, len(args))
	for _, a := range args {
		k := exec.Key{}
		text := strings.TrimSpace(a)
		if f := strings.Fields(text); len(f) > 1 {
			switch strings.ToLower(f[len(f)-1]) {
			case "desc":
				k.Descending = true
				text = strings.Join(f[:len(f)-1], " ")
				break
			case "asc":
				text = strings.Join(f[:len(f)-1], " ")
				break
			default:
				break
			}
		}
		e, err := plan.Compile(text, schema, env.Registry)
		if err != nil {
			return nil, err
		}
		k.Expr = e
		out = append(out, k)
	}
	return out, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	schema, err := loadSchema()
	if err != nil {
		return staged("schema", err)
	}
	env, err := newEnv()
	if err != nil {
		return staged("env", err)
	}

	var g *cg.CodeGenerator
	if renderCompare {
		keys, err := parseKeys(args, schema, env)
		if err != nil {
			return staged("bind", err)
		}
		if g, err = exec.GenerateComparator(keys, env); err != nil {
			return staged("codegen", err)
		}
	} else {
		pred, err := plan.Compile(strings.Join(args, " "), schema, env.Registry)
		if err != nil {
			return staged("bind", err)
		}
		if g, err = exec.GenerateFilterer(pred, env); err != nil {
			return staged("codegen", err)
		}
	}

	var src string
	switch {
	case renderGeneric:
		src, err = g.GenerifiedCode()
	case renderMerged:
		src, err = env.Compiler.Merge().Merged(g)
	default:
		src, err = g.GeneratedCode()
	}
	if err != nil {
		return staged("render", err)
	}

	logger.Debug("unit rendered",
		zap.String("class", g.ClassName()),
		zap.Bool("plain_go", g.IsPlainGo()),
	)
	fmt.Fprint(cmd.OutOrStdout(), src)
	return nil
}

func readInput(cmd *cobra.Command, path string) (*vector.Schema, []*vector.Batch, *exec.Env, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, nil, nil, staged("schema", err)
	}
	env, err := newEnv()
	if err != nil {
		return nil, nil, nil, staged("env", err)
	}
	r, err := scan.NewReader(schema, opts, logger)
	if err != nil {
		return nil, nil, nil, staged("scan", err)
	}
	batches, err := r.ReadFile(cmd.Context(), path)
	if err != nil {
		return nil, nil, nil, staged("scan", err)
	}
	return schema, batches, env, nil
}

func runFilter(cmd *cobra.Command, args []string) error {
	schema, batches, env, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	pred, err := plan.Compile(args[1], schema, env.Registry)
	if err != nil {
		return staged("bind", err)
	}
	f, err := exec.NewFilterer(cmd.Context(), pred, env)
	if err != nil {
		return staged("codegen", err)
	}
	defer f.Release()

	t := newTable(schema)
	for _, b := range batches {
		if err := f.Setup(b); err != nil {
			return staged("exec", err)
		}
		sel := vector.NewSelectionVector2(b.RecordCount())
		n, err := f.Filter(b.RecordCount(), sel)
		if err != nil {
			return staged("exec", err)
		}
		for i := 0; i < n; i++ {
			t.add(b, sel.Index(i))
		}
	}
	t.print(cmd.OutOrStdout())
	return nil
}

type rowRef struct {
	batch int
	row   int
}

func runSort(cmd *cobra.Command, args []string) error {
	schema, batches, env, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	keys, err := parseKeys(args[1:], schema, env)
	if err != nil {
		return staged("bind", err)
	}
	c, err := exec.NewComparator(cmd.Context(), keys, env)
	if err != nil {
		return staged("codegen", err)
	}
	defer c.Release()

	rows := []rowRef{}
	for bi, b := range batches {
		for i := 0; i < b.RecordCount(); i++ {
			rows = append(rows, rowRef{batch: bi, row: i})
		}
	}

	// the comparator is set up again only when the pair of batches changes
	var failure error
	left, right := -1, -1
	slices.SortStableFunc(rows, func(l, r rowRef) int {
		if failure != nil {
			return 0
		}
		if l.batch != left || r.batch != right {
			if err := c.Setup(batches[l.batch], batches[r.batch]); err != nil {
				failure = err
				return 0
			}
			left, right = l.batch, r.batch
		}
		o, err := c.Compare(l.row, r.row)
		if err != nil {
			failure = err
			return 0
		}
		switch o {
		case exec.Less:
			return -1
		case exec.Greater:
			return 1
		default:
			return 0
		}
	})
	if failure != nil {
		return staged("exec", failure)
	}

	t := newTable(schema)
	for _, r := range rows {
		t.add(batches[r.batch], r.row)
	}
	t.print(cmd.OutOrStdout())
	return nil
}
