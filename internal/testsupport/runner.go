package testsupport

import (
	"context"
	"strings"
	"sync"
)

// Call captures one invocation seen by FakeRunner.
type Call struct {
	Name string
	Args []string
}

// Line renders the call as a shell-like command line.
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// FakeRunner records commands instead of executing them. Handle, when set,
// decides each call's result and may write the files a real tool would.
type FakeRunner struct {
	Handle func(call Call) (stdout, stderr []byte, err error)

	mu    sync.Mutex
	calls []Call
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if f.Handle == nil {
		return nil, nil, nil
	}
	return f.Handle(call)
}

// Calls returns a snapshot of the recorded invocations.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// LastArg returns the final argument of a call, which is the output path for
// pdftotext.
func (c Call) LastArg() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// ArgValue returns the value of a "-flag=value" or "-flagvalue" style
// argument, e.g. ArgValue("-sOutputFile=") or ArgValue("-o").
func (c Call) ArgValue(prefix string) string {
	for i, arg := range c.Args {
		if arg == prefix && i+1 < len(c.Args) {
			return c.Args[i+1]
		}
		if strings.HasPrefix(arg, prefix) && arg != prefix {
			return strings.TrimPrefix(arg, prefix)
		}
	}
	return ""
}
