package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// A fully resolved pipeline declaration.
//
// Constructed once per invocation from a manifest file plus caller-supplied
// parameter overrides. Stages are ordered as declared; declaration order is
// the stage ordinal.
type Pipeline struct {
	Params map[string]string // Resolved build parameters.
	Stages []Stage           // Stages in declaration order.
}

// One isolated environment plus the ordered work executed within it.
type Stage struct {
	Name       string            // Stage identifier, unique within the pipeline.
	From       string            // Base environment: an OCI archive path or an imported image tag.
	Packages   []string          // System packages installed during provisioning.
	Installer  string            // Package install command. Empty uses the executor default.
	Workdir    string            // Working directory for commands and the source import.
	Env        map[string]string // Environment variables applied to every command.
	Run        []string          // Shell commands, executed in order.
	Source     bool              // Whether the invocation's source tree is imported at Workdir.
	Entrypoint []string          // OCI entrypoint set on the exported image (terminal stage only).
	Artifacts  []ArtifactRef     // Artifacts pulled in from earlier stages.
}

// Names a path in a completed stage and its destination in this stage.
type ArtifactRef struct {
	From string // Source stage name. Must have a strictly smaller ordinal.
	Path string // Absolute path in the source stage's final filesystem.
	To   string // Absolute destination path in this stage.
}

// Top-level structure of a manifest file. Stage bodies are left undecoded so
// they can be evaluated against the resolved parameter set.
type manifestFile struct {
	Params []*paramBlock `hcl:"param,block"`
	Stages []*stageBlock `hcl:"stage,block"`
}

type paramBlock struct {
	Name    string `hcl:"name,label"`
	Default string `hcl:"default"`
}

type stageBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type stageBody struct {
	From       string            `hcl:"from"`
	Packages   []string          `hcl:"packages,optional"`
	Installer  string            `hcl:"installer,optional"`
	Workdir    string            `hcl:"workdir,optional"`
	Env        map[string]string `hcl:"env,optional"`
	Run        []string          `hcl:"run,optional"`
	Source     bool              `hcl:"source,optional"`
	Entrypoint []string          `hcl:"entrypoint,optional"`
	Artifacts  []*artifactBlock  `hcl:"artifact,block"`
}

type artifactBlock struct {
	From string `hcl:"from"`
	Path string `hcl:"path"`
	To   string `hcl:"to"`
}

// Loads a pipeline manifest from disk.
//
// Parameters are resolved first, from declared defaults and caller overrides.
// Stage bodies are then decoded against an evaluation context exposing the
// resolved values as param.<name>, so attributes may interpolate parameters
// (e.g., from = "images/rust-${param.toolchain_version}.tar"). The returned
// pipeline is validated; see [Pipeline] for the invariants.
func Load(path string, overrides map[string]string) (*Pipeline, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %s", ErrManifest, path, diags.Error())
	}

	var mf manifestFile
	if diags := gohcl.DecodeBody(file.Body, nil, &mf); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %s", ErrManifest, path, diags.Error())
	}

	declared, err := declaredParams(mf.Params)
	if err != nil {
		return nil, err
	}

	values, err := ResolveParams(declared, overrides)
	if err != nil {
		return nil, err
	}

	stages, err := decodeStages(mf.Stages, evalContext(values))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Params: values, Stages: stages}
	if err := p.validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Collects param block declarations, rejecting duplicates.
func declaredParams(blocks []*paramBlock) ([]Param, error) {
	declared := make([]Param, 0, len(blocks))
	seen := make(map[string]bool, len(blocks))

	for _, b := range blocks {
		if seen[b.Name] {
			return nil, fmt.Errorf("%w: parameter %q declared twice", ErrManifest, b.Name)
		}
		seen[b.Name] = true
		declared = append(declared, Param{Name: b.Name, Default: b.Default})
	}

	return declared, nil
}

// Builds the evaluation context for stage bodies.
//
// Resolved parameters are exposed as attributes of a single "param" object
// so manifest expressions read as param.<name>.
func evalContext(params map[string]string) *hcl.EvalContext {
	attrs := make(map[string]cty.Value, len(params))
	for name, value := range params {
		attrs[name] = cty.StringVal(value)
	}

	vars := map[string]cty.Value{"param": cty.EmptyObjectVal}
	if len(attrs) > 0 {
		vars["param"] = cty.ObjectVal(attrs)
	}

	return &hcl.EvalContext{Variables: vars}
}

// Decodes stage bodies with parameter interpolation applied.
func decodeStages(blocks []*stageBlock, ctx *hcl.EvalContext) ([]Stage, error) {
	stages := make([]Stage, 0, len(blocks))

	for _, sb := range blocks {
		var body stageBody
		if diags := gohcl.DecodeBody(sb.Body, ctx, &body); diags.HasErrors() {
			return nil, fmt.Errorf("%w: stage %q: %s", ErrManifest, sb.Name, diags.Error())
		}

		refs := make([]ArtifactRef, 0, len(body.Artifacts))
		for _, a := range body.Artifacts {
			refs = append(refs, ArtifactRef{From: a.From, Path: a.Path, To: a.To})
		}

		stages = append(stages, Stage{
			Name:       sb.Name,
			From:       body.From,
			Packages:   body.Packages,
			Installer:  body.Installer,
			Workdir:    body.Workdir,
			Env:        body.Env,
			Run:        body.Run,
			Source:     body.Source,
			Entrypoint: body.Entrypoint,
			Artifacts:  refs,
		})
	}

	return stages, nil
}
