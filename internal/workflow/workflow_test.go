package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dotSlashJack/knitscript-mcp-runner/internal/knitout"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/knitscript"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/staging"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/toolerr"
)

// stubInvoker stands in for the KnitScript compiler. It writes the
// Knitout file and, when produceDat is set, the DAT file too.
type stubInvoker struct {
	calls      int
	produceDat bool
	err        error
}

func (s *stubInvoker) Knitout(_ context.Context, _, knitoutPath string) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(knitoutPath, []byte("knitout;;2\n"), 0o644)
}

func (s *stubInvoker) KnitoutAndDat(_ context.Context, _, knitoutPath, datPath string) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	if err := os.WriteFile(knitoutPath, []byte("knitout;;2\n"), 0o644); err != nil {
		return err
	}
	if s.produceDat {
		return os.WriteFile(datPath, []byte{0x00}, 0o644)
	}
	return nil
}

// newConverterScript writes a sh stand-in for knitout-to-dat.js that
// appends its Knitout argument to callLog and writes the DAT output.
func newConverterScript(t *testing.T, dir, callLog, body string) *knitout.Converter {
	t.Helper()
	script := filepath.Join(dir, "knitout-to-dat.js")
	full := "#!/bin/sh\necho \"$1\" >> " + callLog + "\n" + body
	if err := os.WriteFile(script, []byte(full), 0o755); err != nil {
		t.Fatal(err)
	}
	return knitout.NewConverter("sh", []string{script})
}

func converterCalls(t *testing.T, callLog string) []string {
	t.Helper()
	data, err := os.ReadFile(callLog)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Fields(string(data))
}

func newOrchestrator(t *testing.T, inv knitscript.Invoker, conv *knitout.Converter, stagingDir string) *Orchestrator {
	t.Helper()
	return New(staging.New(stagingDir), knitscript.NewAdapter(inv), conv, nil)
}

func TestSaveAndCompileWithConverterFallback(t *testing.T) {
	dir := t.TempDir()
	callLog := filepath.Join(dir, "calls")
	conv := newConverterScript(t, dir, callLog, "printf 'dat' > \"$2\"\necho done\n")
	inv := &stubInvoker{} // compiler produces .k but no .dat
	o := newOrchestrator(t, inv, conv, filepath.Join(dir, "tmp"))

	res := o.SaveAndCompile(context.Background(), SaveCompileRequest{
		Path:        filepath.Join(dir, "pattern.ks"),
		Content:     "import cast_ons;\n",
		GenerateDat: true,
	})
	if res.Err != nil {
		t.Fatalf("SaveAndCompile: %v", res.Err)
	}

	wantK := filepath.Join(dir, "pattern.k")
	wantDat := filepath.Join(dir, "pattern.dat")
	if res.Compile.KnitoutPath != wantK {
		t.Fatalf("KnitoutPath = %q, want %q", res.Compile.KnitoutPath, wantK)
	}
	if res.Compile.DatPath != wantDat {
		t.Fatalf("DatPath = %q, want converter output %q", res.Compile.DatPath, wantDat)
	}
	if res.SourceStaged == "" || res.Compile.KnitoutStaged == "" || res.Compile.DatStaged == "" {
		t.Fatalf("staged copies missing: source=%q k=%q dat=%q",
			res.SourceStaged, res.Compile.KnitoutStaged, res.Compile.DatStaged)
	}

	calls := converterCalls(t, callLog)
	if len(calls) != 1 || calls[0] != wantK {
		t.Fatalf("converter calls = %v, want exactly one with %q", calls, wantK)
	}
}

func TestSaveAndCompileSkipsConverterWhenCompilerProducedDat(t *testing.T) {
	dir := t.TempDir()
	callLog := filepath.Join(dir, "calls")
	conv := newConverterScript(t, dir, callLog, "printf 'dat' > \"$2\"\n")
	inv := &stubInvoker{produceDat: true}
	o := newOrchestrator(t, inv, conv, filepath.Join(dir, "tmp"))

	res := o.SaveAndCompile(context.Background(), SaveCompileRequest{
		Path:        filepath.Join(dir, "pattern.ks"),
		Content:     "import cast_ons;\n",
		GenerateDat: true,
	})
	if res.Err != nil {
		t.Fatalf("SaveAndCompile: %v", res.Err)
	}
	if res.Compile.DatPath != filepath.Join(dir, "pattern.dat") {
		t.Fatalf("DatPath = %q, want compiler-produced DAT", res.Compile.DatPath)
	}
	if calls := converterCalls(t, callLog); len(calls) != 0 {
		t.Fatalf("converter invoked %d times despite existing DAT", len(calls))
	}
}

func TestSaveAndCompileWithoutDatNeverConverts(t *testing.T) {
	dir := t.TempDir()
	callLog := filepath.Join(dir, "calls")
	conv := newConverterScript(t, dir, callLog, "")
	inv := &stubInvoker{}
	o := newOrchestrator(t, inv, conv, filepath.Join(dir, "tmp"))

	res := o.SaveAndCompile(context.Background(), SaveCompileRequest{
		Path:    filepath.Join(dir, "pattern.ks"),
		Content: "import cast_ons;\n",
	})
	if res.Err != nil {
		t.Fatalf("SaveAndCompile: %v", res.Err)
	}
	if res.Compile.DatPath != "" {
		t.Fatalf("DatPath = %q, want empty when DAT not requested", res.Compile.DatPath)
	}
	if calls := converterCalls(t, callLog); len(calls) != 0 {
		t.Fatal("converter invoked although DAT was not requested")
	}
}

func TestSaveFailureIsTerminal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	inv := &stubInvoker{}
	conv := newConverterScript(t, dir, filepath.Join(dir, "calls"), "")
	o := newOrchestrator(t, inv, conv, filepath.Join(dir, "tmp"))

	res := o.SaveAndCompile(context.Background(), SaveCompileRequest{
		Path:    filepath.Join(blocker, "nested", "pattern.ks"),
		Content: "x",
	})
	if res.Err == nil || res.Err.Kind != toolerr.IO {
		t.Fatalf("expected io failure, got %v", res.Err)
	}
	if inv.calls != 0 {
		t.Fatalf("compiler invoked %d times after failed save", inv.calls)
	}
}

func TestCompileFailureSkipsConversion(t *testing.T) {
	dir := t.TempDir()
	callLog := filepath.Join(dir, "calls")
	conv := newConverterScript(t, dir, callLog, "")
	inv := &stubInvoker{err: toolerr.New(toolerr.External, "knit error")}
	o := newOrchestrator(t, inv, conv, filepath.Join(dir, "tmp"))

	res := o.SaveAndCompile(context.Background(), SaveCompileRequest{
		Path:        filepath.Join(dir, "pattern.ks"),
		Content:     "broken",
		GenerateDat: true,
	})
	if res.Err == nil || res.Err.Kind != toolerr.External {
		t.Fatalf("expected compile failure surfaced, got %v", res.Err)
	}
	if calls := converterCalls(t, callLog); len(calls) != 0 {
		t.Fatal("converter invoked after compile failure")
	}
}

func TestConverterFailureKeepsCompileOutputs(t *testing.T) {
	dir := t.TempDir()
	callLog := filepath.Join(dir, "calls")
	conv := newConverterScript(t, dir, callLog, "echo 'no dat for you' >&2\nexit 2\n")
	inv := &stubInvoker{}
	o := newOrchestrator(t, inv, conv, filepath.Join(dir, "tmp"))

	res := o.SaveAndCompile(context.Background(), SaveCompileRequest{
		Path:        filepath.Join(dir, "pattern.ks"),
		Content:     "import cast_ons;\n",
		GenerateDat: true,
	})
	if res.Err == nil || res.Err.Kind != toolerr.External {
		t.Fatalf("expected converter failure surfaced, got %v", res.Err)
	}
	if res.Compile.KnitoutPath == "" || res.Compile.Err != nil {
		t.Fatal("compile stage outputs should survive converter failure")
	}
	if res.Compile.DatPath != "" {
		t.Fatalf("DatPath = %q, want empty after failed conversion", res.Compile.DatPath)
	}
	if !strings.Contains(res.ConverterStderr, "no dat for you") {
		t.Fatalf("converter stderr not surfaced: %q", res.ConverterStderr)
	}
}

func TestConverterSilentNoOutputIsFailure(t *testing.T) {
	dir := t.TempDir()
	callLog := filepath.Join(dir, "calls")
	// Exits zero but never writes the DAT file.
	conv := newConverterScript(t, dir, callLog, "echo converted\nexit 0\n")
	inv := &stubInvoker{}
	o := newOrchestrator(t, inv, conv, filepath.Join(dir, "tmp"))

	res := o.SaveAndCompile(context.Background(), SaveCompileRequest{
		Path:        filepath.Join(dir, "pattern.ks"),
		Content:     "import cast_ons;\n",
		GenerateDat: true,
	})
	if res.Err == nil || res.Err.Kind != toolerr.External {
		t.Fatalf("expected failure when converter wrote no DAT, got %v", res.Err)
	}
	if !strings.Contains(res.Err.Message, "no DAT file") {
		t.Fatalf("error %q should name the missing DAT file", res.Err.Message)
	}
	if res.Compile.DatPath != "" {
		t.Fatalf("DatPath = %q, want empty when no file exists on disk", res.Compile.DatPath)
	}
	if res.Compile.KnitoutPath == "" || res.Compile.Err != nil {
		t.Fatal("compile stage outputs should survive the missing DAT")
	}
	if calls := converterCalls(t, callLog); len(calls) != 1 {
		t.Fatalf("converter calls = %v, want exactly one", calls)
	}
}

func TestStagingFailureIsAdvisoryOnly(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	inv := &stubInvoker{produceDat: true}
	conv := newConverterScript(t, dir, filepath.Join(dir, "calls"), "")
	// Staging directory cannot be created under a regular file.
	o := newOrchestrator(t, inv, conv, filepath.Join(blocker, "tmp"))

	res := o.SaveAndCompile(context.Background(), SaveCompileRequest{
		Path:        filepath.Join(dir, "pattern.ks"),
		Content:     "import cast_ons;\n",
		GenerateDat: true,
	})
	if res.Err != nil {
		t.Fatalf("staging failure must not affect success, got %v", res.Err)
	}
	if len(res.Advisories) == 0 {
		t.Fatal("expected advisory entries for failed staging copies")
	}
}

func TestCompileMissingInput(t *testing.T) {
	dir := t.TempDir()
	inv := &stubInvoker{}
	conv := newConverterScript(t, dir, filepath.Join(dir, "calls"), "")
	o := newOrchestrator(t, inv, conv, filepath.Join(dir, "tmp"))

	res := o.Compile(context.Background(), CompileRequest{SourcePath: filepath.Join(dir, "absent.ks")})
	if res.Err == nil || res.Err.Kind != toolerr.Validation {
		t.Fatalf("expected validation error, got %v", res.Err)
	}
	if !strings.Contains(res.Err.Message, "not found") {
		t.Fatalf("error %q should mention not found", res.Err.Message)
	}
	if res.KnitoutPath != "" || res.DatPath != "" {
		t.Fatalf("output paths should be absent on failure: k=%q dat=%q", res.KnitoutPath, res.DatPath)
	}
}
