package exec

import (
	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/cg"
	"github.com/dianpeng/colgen/exec/templates"
)

const templatesPath = "github.com/dianpeng/colgen/exec/templates/"

func batchParam(name string) cg.Param {
	return cg.Param{Name: name, Type: jen.Index().Interface()}
}

func indexParam(name string) cg.Param {
	return cg.Param{Name: name, Type: jen.Int()}
}

// FiltererDefinition describes exec/templates/filterer. Every filterer
// generated by the process draws its sequence number from it.
var FiltererDefinition = &cg.TemplateDescriptor{
	Interface: "Filterer",
	Template: cg.TypeRef{
		Path: templatesPath + templates.FiltererDir,
		Name: "Template",
	},
	HooksField: "Hooks",
	Signature: &cg.Signature{
		Hooks: []cg.Method{
			{
				Name:   "DoSetup",
				Params: []cg.Param{batchParam("incoming")},
			},
			{
				Name:    "DoEval",
				Params:  []cg.Param{indexParam("inIndex")},
				Results: []jen.Code{jen.Bool()},
			},
		},
		Entries: []cg.Method{
			{
				Name:   "Setup",
				Params: []cg.Param{batchParam("incoming")},
			},
			{
				Name:    "FilterBatch",
				Params:  []cg.Param{indexParam("recordCount"), {Name: "sel", Type: jen.Index().Int()}},
				Results: []jen.Code{jen.Int()},
			},
		},
	},
	Source:    templates.FS,
	SourceDir: templates.FiltererDir,
}

var ComparatorDefinition = &cg.TemplateDescriptor{
	Interface: "Comparator",
	Template: cg.TypeRef{
		Path: templatesPath + templates.ComparatorDir,
		Name: "Template",
	},
	HooksField: "Hooks",
	Signature: &cg.Signature{
		Hooks: []cg.Method{
			{
				Name:   "DoSetup",
				Params: []cg.Param{batchParam("left"), batchParam("right")},
			},
			{
				Name:    "DoEval",
				Params:  []cg.Param{indexParam("leftIndex"), indexParam("rightIndex")},
				Results: []jen.Code{jen.Int(), jen.Bool()},
			},
		},
		Entries: []cg.Method{
			{
				Name:   "Setup",
				Params: []cg.Param{batchParam("left"), batchParam("right")},
			},
			{
				Name:    "Compare",
				Params:  []cg.Param{indexParam("leftIndex"), indexParam("rightIndex")},
				Results: []jen.Code{jen.Int(), jen.Bool()},
			},
		},
	},
	Source:    templates.FS,
	SourceDir: templates.ComparatorDir,
}

// comparatorMapping reads one side of the comparison
func comparatorMapping(side string) *cg.MappingSet {
	return cg.NewMappingSet(
		side+"Index",
		"",
		side,
		"",
		&cg.GeneratorMapping{
			Setup: "DoSetup",
			Eval:  "DoEval",
		},
	)
}
