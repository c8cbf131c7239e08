package prober

// introspectScript runs on the host interpreter. It reads one module name
// per line from stdin and answers on stdout with hex-encoded records:
//
//	M <name>   module imported
//	A <attr>   public attribute of the preceding module
//	F <name>   ImportError
//
// Anything a module prints while importing goes to stderr. Other exceptions
// abort the script with a traceback and a non-zero exit.
//
// The script must run on Python 2.5 and on Python 3.
const introspectScript = `import sys
import binascii

try:
    bytes
except NameError:
    bytes = str


def hx(s):
    if not isinstance(s, bytes):
        s = s.encode('utf-8')
    h = binascii.hexlify(s)
    if not isinstance(h, str):
        h = h.decode('ascii')
    return h


out = sys.stdout
for line in sys.stdin:
    name = line.rstrip('\n')
    sys.stdout = sys.stderr
    try:
        try:
            __import__(name)
        except ImportError:
            out.write('F ' + hx(name) + '\n')
            continue
    finally:
        sys.stdout = out
    module = sys.modules[name]
    out.write('M ' + hx(name) + '\n')
    for attr in dir(module):
        if not attr.startswith('_'):
            out.write('A ' + hx(attr) + '\n')
out.flush()
`
