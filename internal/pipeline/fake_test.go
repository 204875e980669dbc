package pipeline

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/masonbuild/mason/internal/runtime"
)

// An in-memory stage environment. Files and directories live in maps keyed
// by absolute path; commands are recorded rather than executed, with exit
// codes scripted per command substring.
type fakeEnv struct {
	id        string
	base      string
	files     map[string][]byte
	modes     map[string]fs.FileMode
	dirs      map[string]bool
	records   []execRecord
	failures  map[string]int
	onExec    func(env *fakeEnv, command string)
	copyToErr error      // When set, CopyTo fails without draining its reader.
	copyFrom  chan error // When non-nil, receives CopyFrom's return value.
	stopped   bool
	destroyed bool
	exports   []fakeExport
}

type execRecord struct {
	command string
	env     []string
	workdir string
}

type fakeExport struct {
	output     string
	entrypoint []string
}

func newFakeEnv(id, base string) *fakeEnv {
	return &fakeEnv{
		id:    id,
		base:  base,
		files: make(map[string][]byte),
		modes: make(map[string]fs.FileMode),
		dirs:  make(map[string]bool),
	}
}

func (e *fakeEnv) ID() string { return e.id }

func (e *fakeEnv) Exec(ctx context.Context, _, command string, env []string, workdir string) (*runtime.ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.records = append(e.records, execRecord{command: command, env: env, workdir: workdir})

	for substr, code := range e.failures {
		if strings.Contains(command, substr) {
			return &runtime.ExecResult{ExitCode: code, Stderr: "simulated failure: " + command}, nil
		}
	}

	if e.onExec != nil {
		e.onExec(e, command)
	}

	return &runtime.ExecResult{}, nil
}

func (e *fakeEnv) commands() []string {
	commands := make([]string, len(e.records))
	for i, rec := range e.records {
		commands[i] = rec.command
	}
	return commands
}

func (e *fakeEnv) MkdirAll(_ context.Context, p string) error {
	for p != "/" && p != "." {
		e.dirs[p] = true
		p = path.Dir(p)
	}
	return nil
}

func (e *fakeEnv) Remove(_ context.Context, p string) error {
	delete(e.files, p)
	delete(e.modes, p)
	delete(e.dirs, p)
	for name := range e.files {
		if strings.HasPrefix(name, p+"/") {
			delete(e.files, name)
			delete(e.modes, name)
		}
	}
	for name := range e.dirs {
		if strings.HasPrefix(name, p+"/") {
			delete(e.dirs, name)
		}
	}
	return nil
}

func (e *fakeEnv) Move(_ context.Context, src, dest string) error {
	moved := false

	if content, ok := e.files[src]; ok {
		e.files[dest] = content
		e.modes[dest] = e.modes[src]
		delete(e.files, src)
		delete(e.modes, src)
		moved = true
	}
	if e.dirs[src] {
		e.dirs[dest] = true
		delete(e.dirs, src)
		moved = true
	}
	for name := range e.files {
		if strings.HasPrefix(name, src+"/") {
			renamed := dest + name[len(src):]
			e.files[renamed] = e.files[name]
			e.modes[renamed] = e.modes[name]
			delete(e.files, name)
			delete(e.modes, name)
			moved = true
		}
	}
	for name := range e.dirs {
		if strings.HasPrefix(name, src+"/") {
			e.dirs[dest+name[len(src):]] = true
			delete(e.dirs, name)
			moved = true
		}
	}

	if !moved {
		return fmt.Errorf("move %q: no such path", src)
	}
	return nil
}

func (e *fakeEnv) Exists(_ context.Context, p string) (bool, error) {
	if _, ok := e.files[p]; ok {
		return true, nil
	}
	if e.dirs[p] {
		return true, nil
	}
	for name := range e.files {
		if strings.HasPrefix(name, p+"/") {
			return true, nil
		}
	}
	return false, nil
}

func (e *fakeEnv) CopyTo(_ context.Context, r io.Reader, destDir string) error {
	if e.copyToErr != nil {
		return e.copyToErr
	}

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		dest := path.Join(destDir, header.Name)
		switch header.Typeflag {
		case tar.TypeDir:
			e.dirs[dest] = true
		case tar.TypeReg:
			content, err := io.ReadAll(tr)
			if err != nil {
				return err
			}
			e.files[dest] = content
			e.modes[dest] = header.FileInfo().Mode()
		}
	}
}

func (e *fakeEnv) CopyFrom(ctx context.Context, w io.Writer, p string) error {
	err := e.copyFromTar(ctx, w, p)
	if e.copyFrom != nil {
		e.copyFrom <- err
	}
	return err
}

func (e *fakeEnv) copyFromTar(_ context.Context, w io.Writer, p string) error {
	tw := tar.NewWriter(w)

	if content, ok := e.files[p]; ok {
		header := &tar.Header{
			Name: path.Base(p),
			Mode: int64(e.modes[p].Perm()),
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if _, err := tw.Write(content); err != nil {
			return err
		}
		return tw.Close()
	}

	var children []string
	for name := range e.files {
		if strings.HasPrefix(name, p+"/") {
			children = append(children, name)
		}
	}
	if len(children) == 0 && !e.dirs[p] {
		return fmt.Errorf("copy from %q: no such path", p)
	}
	sort.Strings(children)

	base := path.Base(p)
	if err := tw.WriteHeader(&tar.Header{Name: base, Typeflag: tar.TypeDir, Mode: 0755}); err != nil {
		return err
	}
	for _, name := range children {
		content := e.files[name]
		header := &tar.Header{
			Name: base + name[len(p):],
			Mode: int64(e.modes[name].Perm()),
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if _, err := tw.Write(content); err != nil {
			return err
		}
	}
	return tw.Close()
}

func (e *fakeEnv) Stop(_ context.Context) error {
	e.stopped = true
	return nil
}

func (e *fakeEnv) Export(_ context.Context, output string, entrypoint []string) error {
	e.exports = append(e.exports, fakeExport{output: output, entrypoint: entrypoint})
	return nil
}

// Honors cancellation like the real runtime's containerd calls would, so
// teardown tests only pass when the pipeline detaches its teardown context.
func (e *fakeEnv) Destroy(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	e.destroyed = true
}

// Creates in-memory environments, optionally pre-seeded with files per base
// and scripted with command failures.
type fakeEngine struct {
	seeds    map[string]map[string][]byte      // base -> path -> content
	modes    map[string]map[string]fs.FileMode // base -> path -> mode
	failures map[string]map[string]int         // base -> command substring -> exit code
	startErr map[string]error                  // base -> error returned from Start
	onExec   func(env *fakeEnv, command string)
	onStart  func(env *fakeEnv)
	started  []*fakeEnv
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		seeds:    make(map[string]map[string][]byte),
		modes:    make(map[string]map[string]fs.FileMode),
		failures: make(map[string]map[string]int),
		startErr: make(map[string]error),
	}
}

func (e *fakeEngine) seed(base, p string, content []byte, mode fs.FileMode) {
	if e.seeds[base] == nil {
		e.seeds[base] = make(map[string][]byte)
		e.modes[base] = make(map[string]fs.FileMode)
	}
	e.seeds[base][p] = content
	e.modes[base][p] = mode
}

func (e *fakeEngine) fail(base, command string, code int) {
	if e.failures[base] == nil {
		e.failures[base] = make(map[string]int)
	}
	e.failures[base][command] = code
}

func (e *fakeEngine) Start(_ context.Context, base, id string) (Environment, error) {
	if err := e.startErr[base]; err != nil {
		return nil, err
	}

	env := newFakeEnv(id, base)
	for p, content := range e.seeds[base] {
		env.files[p] = bytes.Clone(content)
		env.modes[p] = e.modes[base][p]
	}
	env.failures = e.failures[base]
	env.onExec = e.onExec

	if e.onStart != nil {
		e.onStart(env)
	}

	e.started = append(e.started, env)
	return env, nil
}

// Returns the environment started for a stage, or nil.
func (e *fakeEngine) byStage(stage string) *fakeEnv {
	for _, env := range e.started {
		if strings.HasSuffix(env.id, "-stage-"+stage) {
			return env
		}
	}
	return nil
}
