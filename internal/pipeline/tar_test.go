package pipeline

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteDirToTar(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "main.rs"), []byte("fn main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("run.sh", filepath.Join(dir, "link.sh")); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := writeDirToTar(tw, dir, "app"); err != nil {
		t.Fatalf("writeDirToTar: %v", err)
	}
	tw.Close()

	entries := make(map[string]*tar.Header)
	contents := make(map[string]string)

	tr := tar.NewReader(&buf)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading archive: %v", err)
		}
		entries[header.Name] = header
		if header.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			if err != nil {
				t.Fatal(err)
			}
			contents[header.Name] = string(data)
		}
	}

	for _, name := range []string{"app", "app/run.sh", "app/src", "app/src/main.rs", "app/link.sh"} {
		if entries[name] == nil {
			t.Errorf("entry %q missing from archive", name)
		}
	}

	if link := entries["app/link.sh"]; link != nil {
		if link.Typeflag != tar.TypeSymlink {
			t.Errorf("app/link.sh typeflag = %v, want symlink", link.Typeflag)
		}
		if link.Linkname != "run.sh" {
			t.Errorf("app/link.sh target = %q, want run.sh", link.Linkname)
		}
	}

	if contents["app/src/main.rs"] != "fn main() {}\n" {
		t.Errorf("app/src/main.rs = %q", contents["app/src/main.rs"])
	}
	if header := entries["app/run.sh"]; header != nil && header.FileInfo().Mode().Perm() != 0755 {
		t.Errorf("app/run.sh mode = %v, want 0755", header.FileInfo().Mode())
	}
}
