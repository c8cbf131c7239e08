package sandbox

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/isdmx/noimport/prober"
)

// ProgramFile is the probe program's file name inside the workspace
const ProgramFile = "app.py"

// programPreamble is emitted once at the top of every probe program. It
// writes the CGI header and defines the helpers the per-module blocks call.
// Only sys.stdout.write is used so the program is valid Python 2 and 3.
const programPreamble = `import sys

sys.stdout.write('Content-Type: text/plain\n\n')


def report_unavailable(module, module_name, attr_names):
    for name in attr_names:
        try:
            getattr(module, name)
        except AttributeError:
            sys.stdout.write(module_name + '.' + name + '\n')


def load(module_name):
    __import__(module_name)
    return sys.modules[module_name]
`

// GenerateProgram renders the probe program for the given records. The output
// depends only on the records and their order.
//
// Each module is re-imported inside the sandbox: a module that fails there
// is reported as "name.*", otherwise every attribute that does not resolve
// is reported as "name.attr".
func GenerateProgram(records []prober.ModuleRecord) string {
	var b strings.Builder
	b.WriteString(programPreamble)

	for _, rec := range records {
		name := PyStringLiteral(rec.Name)
		fmt.Fprintf(&b, "\n\ntry:\n")
		fmt.Fprintf(&b, "    module = load(%s)\n", name)
		fmt.Fprintf(&b, "except ImportError:\n")
		fmt.Fprintf(&b, "    sys.stdout.write(%s + '.*\\n')\n", name)
		fmt.Fprintf(&b, "else:\n")
		fmt.Fprintf(&b, "    report_unavailable(module, %s, %s)\n", name, PyListLiteral(rec.Attributes))
	}

	return b.String()
}

// PyListLiteral renders items as a Python list of string literals
func PyListLiteral(items []string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = PyStringLiteral(item)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// PyStringLiteral renders s as an ASCII-only Python string literal that
// evaluates back to s. Valid non-ASCII UTF-8 becomes a u'' literal with
// \u escapes; anything else is escaped byte by byte.
func PyStringLiteral(s string) string {
	if utf8.ValidString(s) && !isASCII(s) {
		return unicodeLiteral(s)
	}
	return byteLiteral(s)
}

func byteLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		writeASCII(&b, s[i])
	}
	b.WriteByte('\'')
	return b.String()
}

func unicodeLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s)*2 + 3)
	b.WriteString("u'")
	for _, r := range s {
		switch {
		case r < utf8.RuneSelf:
			writeASCII(&b, byte(r))
		case r <= 0xFFFF:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			fmt.Fprintf(&b, `\U%08x`, r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func writeASCII(b *strings.Builder, c byte) {
	switch {
	case c == '\\' || c == '\'':
		b.WriteByte('\\')
		b.WriteByte(c)
	case c >= 0x20 && c < 0x7f:
		b.WriteByte(c)
	default:
		fmt.Fprintf(b, `\x%02x`, c)
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
