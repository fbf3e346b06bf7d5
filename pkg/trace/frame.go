// Package trace parses sampled call-stack traces into weighted samples.
package trace

import "strings"

// FunctionID identifies a function independent of the instruction offset
// that was sampled inside it.
type FunctionID string

// InstructionID identifies a sampled instruction site: a function plus its
// byte offset, e.g. "memcpy+0x1a".
type InstructionID string

// Function returns the function part of the instruction site.
func (id InstructionID) Function() FunctionID {
	s := string(id)
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	return FunctionID(s)
}

// decorations prefix the symbol with module or address information in
// dtrace (module`func), systemtap (0xaddr : func) and perf (addr|func)
// output.
const decorations = ":|`"

// Frame is a single stack entry.
type Frame struct {
	Raw         string
	Function    FunctionID
	Instruction InstructionID
}

// Normalize extracts the function and instruction identities from a raw
// stack line. It never fails: a line that does not look decorated is used
// as the symbol as-is.
func Normalize(raw string) Frame {
	line := strings.TrimSpace(raw)

	sym := line
	if i := strings.LastIndexAny(line, decorations); i >= 0 {
		sym = line[i+1:]
	}
	sym = strings.TrimSpace(sym)
	if sym == "" {
		sym = line
	}

	// Remove library/module path like "/usr/lib/libc.so".
	inst := sym
	if i := strings.IndexByte(inst, '/'); i >= 0 {
		inst = inst[:i]
	}
	if inst == "" {
		inst = sym
	}

	// Remove offset like "+0x1a".
	fn := inst
	if i := strings.IndexByte(fn, '+'); i >= 0 {
		fn = fn[:i]
	}

	return Frame{
		Raw:         raw,
		Function:    FunctionID(fn),
		Instruction: InstructionID(inst),
	}
}
