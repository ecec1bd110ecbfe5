// Package hclconfig reads resolver configuration from an HCL refs block:
//
//	refs {
//	  pattern = ["posts/**", "!posts/drafts/**"]
//	  policy  = "permissive"
//	}
//
// pattern accepts a single string or a list. Other blocks and attributes in
// the same file are ignored so the block can live in a host's config file.
package hclconfig

import (
	"fmt"
	"os"

	"github.com/goliatone/go-refs"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

type hclFile struct {
	Refs   *hclRefsBlock `hcl:"refs,block"`
	Remain hcl.Body      `hcl:",remain"`
}

type hclRefsBlock struct {
	Pattern hcl.Expression `hcl:"pattern,optional"`
	Policy  *string        `hcl:"policy,optional"`
}

// LoadFile parses the HCL file at path.
func LoadFile(path string, evalCtx *hcl.EvalContext) (refs.Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return refs.Config{}, fmt.Errorf("hclconfig: read %s: %w", path, err)
	}
	return Parse(src, path, evalCtx)
}

// Parse decodes src. A file without a refs block yields refs.DefaultConfig.
// evalCtx may be nil; it supplies variables and functions to expressions.
func Parse(src []byte, filename string, evalCtx *hcl.EvalContext) (refs.Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return refs.Config{}, fmt.Errorf("hclconfig: failed to parse %s: %w", filename, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &parsed); diags.HasErrors() {
		return refs.Config{}, fmt.Errorf("hclconfig: failed to decode %s: %w", filename, diags)
	}
	if parsed.Refs == nil {
		return refs.DefaultConfig(), nil
	}

	cfg := refs.Config{}
	patterns, err := decodePatterns(parsed.Refs.Pattern, evalCtx)
	if err != nil {
		return refs.Config{}, fmt.Errorf("hclconfig: %s: %w", filename, err)
	}
	cfg.Pattern = patterns
	if parsed.Refs.Policy != nil {
		cfg.Policy = refs.Policy(*parsed.Refs.Policy)
	}

	cfg, err = cfg.Normalize()
	if err != nil {
		return refs.Config{}, fmt.Errorf("hclconfig: %s: %w", filename, err)
	}
	return cfg, nil
}

func decodePatterns(expr hcl.Expression, evalCtx *hcl.EvalContext) ([]string, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("pattern must be known at load time")
	}

	if val.Type() == cty.String {
		return []string{val.AsString()}, nil
	}
	list, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, fmt.Errorf("pattern must be a string or a list of strings, got %s: %w", val.Type().FriendlyName(), err)
	}

	patterns := make([]string, 0, list.LengthInt())
	for it := list.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.IsNull() {
			continue
		}
		patterns = append(patterns, elem.AsString())
	}
	return patterns, nil
}
