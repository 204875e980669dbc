// Package manifest loads and validates declarative pipeline manifests.
//
// A manifest is an HCL file declaring build parameters and an ordered list
// of stages. Each stage names a base environment, the system packages to
// provision, the commands to run, and optionally the artifacts to pull in
// from earlier stages. Parameters have defaults and may be overridden per
// invocation; stage attributes interpolate them as param.<name>.
//
//	param "toolchain_version" {
//	  default = "1.61"
//	}
//
//	param "run_base" {
//	  default = "bullseye-slim"
//	}
//
//	stage "build" {
//	  from     = "images/rust-${param.toolchain_version}.tar"
//	  packages = ["make", "clang"]
//	  workdir  = "/opt/app"
//	  source   = true
//	  run      = ["make clean", "make test", "make release"]
//	}
//
//	stage "runtime" {
//	  from       = "images/${param.run_base}.tar"
//	  entrypoint = ["/usr/local/bin/app"]
//
//	  artifact {
//	    from = "build"
//	    path = "/opt/app/target/release/app"
//	    to   = "/usr/local/bin/app"
//	  }
//	}
//
// Validation enforces the structural invariants the executor relies on:
// unique stage names, backward-only artifact references, and at most one
// artifact reference per destination path within a stage.
package manifest
