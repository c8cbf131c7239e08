package sandbox

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/noimport/prober"
)

func TestPyStringLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Identifier", "getcwd", `'getcwd'`},
		{"Empty", "", `''`},
		{"Quote", "it's", `'it\'s'`},
		{"Backslash", `a\b`, `'a\\b'`},
		{"Control", "tab\there\n", `'tab\x09here\x0a'`},
		{"Delete", "x\x7f", `'x\x7f'`},
		{"Latin1", "café", `u'caf\u00e9'`},
		{"Astral", "x\U0001F600", `u'x\U0001f600'`},
		{"UnicodeWithQuote", "é'", `u'\u00e9\''`},
		{"InvalidUTF8", "a\xffb", `'a\xffb'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PyStringLiteral(tt.in))
		})
	}
}

func TestPyListLiteral(t *testing.T) {
	assert.Equal(t, "[]", PyListLiteral(nil))
	assert.Equal(t, `['a', 'b\'c']`, PyListLiteral([]string{"a", "b'c"}))
}

func TestGenerateProgram(t *testing.T) {
	records := []prober.ModuleRecord{
		{Name: "os.path", Attributes: []string{"join", "split"}},
		{Name: "sys", Attributes: []string{}},
	}

	program := GenerateProgram(records)

	assert.True(t, strings.HasPrefix(program, programPreamble))
	assert.Contains(t, program, "    module = load('os.path')\n")
	assert.Contains(t, program, "    sys.stdout.write('os.path' + '.*\\n')\n")
	assert.Contains(t, program, "    report_unavailable(module, 'os.path', ['join', 'split'])\n")
	assert.Contains(t, program, "    report_unavailable(module, 'sys', [])\n")
	assert.Less(t, strings.Index(program, "'os.path'"), strings.Index(program, "'sys'"))

	t.Run("Deterministic", func(t *testing.T) {
		again := GenerateProgram([]prober.ModuleRecord{
			{Name: "os.path", Attributes: []string{"join", "split"}},
			{Name: "sys", Attributes: []string{}},
		})
		assert.Equal(t, program, again)
	})

	t.Run("NoRecords", func(t *testing.T) {
		assert.Equal(t, programPreamble, GenerateProgram(nil))
	})

	t.Run("ASCIIOnly", func(t *testing.T) {
		weird := GenerateProgram([]prober.ModuleRecord{{Name: "m", Attributes: []string{"é", "\x00", "a'b"}}})
		for i := 0; i < len(weird); i++ {
			assert.Less(t, weird[i], byte(0x80), "byte %d", i)
		}
	})
}

// runPython executes program with python3, with dir on the import path
func runPython(t *testing.T, dir, program string) string {
	t.Helper()
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}

	path := filepath.Join(dir, ProgramFile)
	require.NoError(t, os.WriteFile(path, []byte(program), FilePermission))

	cmd := exec.Command(python, path)
	cmd.Env = append(os.Environ(), "PYTHONPATH="+dir, "PYTHONDONTWRITEBYTECODE=1")
	out, err := cmd.Output()
	require.NoError(t, err)
	return string(out)
}

func TestGeneratedProgramReportsUnavailableNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modname.py"), []byte("a = 1\n"), FilePermission))

	t.Run("MissingAttribute", func(t *testing.T) {
		out := runPython(t, dir, GenerateProgram([]prober.ModuleRecord{
			{Name: "modname", Attributes: []string{"a", "b"}},
		}))
		assert.Equal(t, "Content-Type: text/plain\n\nmodname.b\n", out)
	})

	t.Run("ModuleNotImportable", func(t *testing.T) {
		out := runPython(t, dir, GenerateProgram([]prober.ModuleRecord{
			{Name: "gonemod", Attributes: []string{"a", "b"}},
		}))
		assert.Equal(t, "Content-Type: text/plain\n\ngonemod.*\n", out)
	})

	t.Run("OddAttributeNames", func(t *testing.T) {
		out := runPython(t, dir, GenerateProgram([]prober.ModuleRecord{
			{Name: "modname", Attributes: []string{"a", "it's", `back\slash`}},
		}))
		assert.Equal(t, "Content-Type: text/plain\n\nmodname.it's\nmodname.back\\slash\n", out)
	})
}
