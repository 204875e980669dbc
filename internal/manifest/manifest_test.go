package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// Writes a manifest to a temp file and returns its path.
func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.hcl")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

const fullManifest = `
param "toolchain_version" {
  default = "1.61"
}

param "run_base" {
  default = "bullseye-slim"
}

stage "build" {
  from      = "images/rust-${param.toolchain_version}.tar"
  packages  = ["make", "clang"]
  workdir   = "/opt/app"
  source    = true
  env       = { CARGO_HOME = "/opt/cargo" }
  run       = ["make clean", "make test", "make release"]
}

stage "runtime" {
  from       = "images/${param.run_base}.tar"
  entrypoint = ["/usr/local/bin/app"]

  artifact {
    from = "build"
    path = "/opt/app/target/release/app"
    to   = "/usr/local/bin/app"
  }
}
`

func TestLoad(t *testing.T) {
	p, err := Load(writeManifest(t, fullManifest), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.Stages) != 2 {
		t.Fatalf("len(Stages) = %d, want 2", len(p.Stages))
	}

	build := p.Stages[0]
	if build.Name != "build" {
		t.Errorf("stage name = %q, want build", build.Name)
	}
	if build.From != "images/rust-1.61.tar" {
		t.Errorf("from = %q, want images/rust-1.61.tar", build.From)
	}
	if len(build.Packages) != 2 || build.Packages[0] != "make" || build.Packages[1] != "clang" {
		t.Errorf("packages = %v, want [make clang]", build.Packages)
	}
	if build.Workdir != "/opt/app" {
		t.Errorf("workdir = %q, want /opt/app", build.Workdir)
	}
	if !build.Source {
		t.Error("source = false, want true")
	}
	if build.Env["CARGO_HOME"] != "/opt/cargo" {
		t.Errorf("env = %v, want CARGO_HOME=/opt/cargo", build.Env)
	}
	if len(build.Run) != 3 || build.Run[0] != "make clean" {
		t.Errorf("run = %v, want three make commands", build.Run)
	}

	rt := p.Stages[1]
	if rt.From != "images/bullseye-slim.tar" {
		t.Errorf("from = %q, want images/bullseye-slim.tar", rt.From)
	}
	if len(rt.Entrypoint) != 1 || rt.Entrypoint[0] != "/usr/local/bin/app" {
		t.Errorf("entrypoint = %v", rt.Entrypoint)
	}
	if len(rt.Artifacts) != 1 {
		t.Fatalf("len(Artifacts) = %d, want 1", len(rt.Artifacts))
	}
	ref := rt.Artifacts[0]
	if ref.From != "build" || ref.Path != "/opt/app/target/release/app" || ref.To != "/usr/local/bin/app" {
		t.Errorf("artifact = %+v", ref)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	p, err := Load(writeManifest(t, fullManifest), map[string]string{"toolchain_version": "1.60"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Params["toolchain_version"] != "1.60" {
		t.Errorf("toolchain_version = %q, want 1.60", p.Params["toolchain_version"])
	}
	if p.Params["run_base"] != "bullseye-slim" {
		t.Errorf("run_base = %q, want bullseye-slim (default preserved)", p.Params["run_base"])
	}
	if p.Stages[0].From != "images/rust-1.60.tar" {
		t.Errorf("from = %q, want images/rust-1.60.tar", p.Stages[0].From)
	}
}

func TestLoadUnknownOverride(t *testing.T) {
	_, err := Load(writeManifest(t, fullManifest), map[string]string{"toolchain": "1.60"})

	var unknown *UnknownParameterError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want *UnknownParameterError", err)
	}
	if unknown.Name != "toolchain" {
		t.Errorf("unknown.Name = %q, want toolchain", unknown.Name)
	}
}

func TestLoadDuplicateParam(t *testing.T) {
	contents := `
param "a" {
  default = "1"
}

param "a" {
  default = "2"
}

stage "only" {
  from = "base.tar"
}
`
	_, err := Load(writeManifest(t, contents), nil)
	if !errors.Is(err, ErrManifest) {
		t.Fatalf("error = %v, want ErrManifest", err)
	}
}

func TestLoadUndeclaredParamReference(t *testing.T) {
	contents := `
stage "only" {
  from = "images/${param.missing}.tar"
}
`
	_, err := Load(writeManifest(t, contents), nil)
	if !errors.Is(err, ErrManifest) {
		t.Fatalf("error = %v, want ErrManifest", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeManifest(t, `stage "broken" {`), nil)
	if !errors.Is(err, ErrManifest) {
		t.Fatalf("error = %v, want ErrManifest", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"), nil)
	if !errors.Is(err, ErrManifest) {
		t.Fatalf("error = %v, want ErrManifest", err)
	}
}
