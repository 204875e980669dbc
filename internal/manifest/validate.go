package manifest

import (
	"fmt"
	"strings"
)

// Checks the pipeline invariants after decoding.
//
// Stage names must be unique and every stage needs a base environment.
// Artifact references may only point backwards: the source stage must appear
// earlier in the declaration order, which rules out forward and circular
// references. Two references writing the same destination in one stage are
// rejected outright rather than resolved last-write-wins; destinations are
// scoped to each stage's own filesystem, so different stages may share a
// path.
func (p *Pipeline) validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("%w: no stages declared", ErrManifest)
	}

	ordinals := make(map[string]int, len(p.Stages))

	for i, stage := range p.Stages {
		if stage.Name == "" {
			return fmt.Errorf("%w: stage %d has no name", ErrManifest, i+1)
		}
		if _, ok := ordinals[stage.Name]; ok {
			return fmt.Errorf("%w: stage %q declared twice", ErrManifest, stage.Name)
		}
		if stage.From == "" {
			return fmt.Errorf("%w: stage %q has no base environment", ErrManifest, stage.Name)
		}
		if stage.Source && stage.Workdir == "" {
			return fmt.Errorf("%w: stage %q imports the source tree but has no workdir", ErrManifest, stage.Name)
		}

		dests := make(map[string]bool, len(stage.Artifacts))
		for _, ref := range stage.Artifacts {
			if err := validateRef(stage.Name, ref, ordinals, dests); err != nil {
				return err
			}
		}

		ordinals[stage.Name] = i
	}

	return nil
}

// Checks a single artifact reference against the stages declared so far.
//
// The current stage is not yet in ordinals, so a self-reference fails the
// same lookup as a forward reference.
func validateRef(stage string, ref ArtifactRef, ordinals map[string]int, dests map[string]bool) error {
	if _, ok := ordinals[ref.From]; !ok {
		return fmt.Errorf("%w: stage %q references artifacts from %q, which is not an earlier stage", ErrManifest, stage, ref.From)
	}
	if !strings.HasPrefix(ref.Path, "/") {
		return fmt.Errorf("%w: stage %q: artifact path %q is not absolute", ErrManifest, stage, ref.Path)
	}
	if !strings.HasPrefix(ref.To, "/") {
		return fmt.Errorf("%w: stage %q: artifact destination %q is not absolute", ErrManifest, stage, ref.To)
	}
	if dests[ref.To] {
		return &DuplicateDestinationError{Dest: ref.To}
	}
	dests[ref.To] = true

	return nil
}
