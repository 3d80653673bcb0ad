package sandboxtest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/sandbox"
)

// ToyScript and ToyCompiled are languages understood by a Toy sandbox.
// A toy program is a single instruction:
//
//	echo           copy stdin to stdout
//	print <text>   print text and a newline
//	exit <n>       exit with code n
//	loop           exceed the time limit
//	oom            exceed the memory limit
//	segv           die from SIGSEGV
//	marker <name>  print the names of files already in the box, then create name
//	fault          make the box itself fail
//	panic          panic inside the box
//
// The toy compiler rejects sources containing "syntax error" and prints a
// warning for sources starting with "warn ".
var (
	ToyScript = lang.Spec{
		Name:             "toy",
		Version:          "1",
		SourceFile:       "main.toy",
		RunCmd:           "toy {src}",
		TimeLimitMs:      1000,
		MemoryLimitBytes: 64 << 20,
	}
	ToyCompiled = lang.Spec{
		Name:             "toyc",
		Version:          "1",
		SourceFile:       "main.toy",
		CompiledFile:     "main",
		CompileCmd:       "toycc -o {bin} {src}",
		RunCmd:           "./{bin}",
		TimeLimitMs:      1000,
		MemoryLimitBytes: 64 << 20,
	}
)

var ErrToyFault = errors.New("toy box failure")

// Toy returns a sandbox with the toy interpreter and compiler installed.
func Toy() *Sandbox {
	s := New()
	s.Handle("toy", func(c *Call) (*sandbox.Result, error) {
		return runToy(c, c.Argv[1])
	})
	s.Handle("./main", func(c *Call) (*sandbox.Result, error) {
		return runToy(c, "main")
	})
	s.Handle("toycc", func(c *Call) (*sandbox.Result, error) {
		out, src := c.Argv[2], c.Argv[3]
		code := string(c.Files[src])
		if strings.Contains(code, "syntax error") {
			return Exit(1, "", src+":1:1: error: syntax error\n"), nil
		}
		stderr := ""
		if rest, ok := strings.CutPrefix(code, "warn "); ok {
			code = rest
			stderr = src + ":1:1: warning: suspicious code\n"
		}
		c.Files[out] = []byte(code)
		return Exit(0, "", stderr), nil
	})
	return s
}

func runToy(c *Call, file string) (*sandbox.Result, error) {
	code := strings.TrimSpace(string(c.Files[file]))
	op, arg, _ := strings.Cut(code, " ")
	switch op {
	case "echo":
		return Exit(0, string(c.Stdin), ""), nil
	case "print":
		return Exit(0, arg+"\n", ""), nil
	case "exit":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, err
		}
		return Exit(n, "", ""), nil
	case "loop":
		sig := 9
		return &sandbox.Result{ExitSignal: &sig, TimedOut: true, WallTimeMs: c.Limits.WallTimeMs}, nil
	case "oom":
		sig := 9
		return &sandbox.Result{ExitSignal: &sig, MemoryExceeded: true, MemoryKiB: c.Limits.MemoryKiB + 1}, nil
	case "segv":
		sig := 11
		return &sandbox.Result{ExitSignal: &sig}, nil
	case "marker":
		var names []string
		for name := range c.Files {
			if name != file {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		c.Files[arg] = []byte("marker")
		return Exit(0, strings.Join(names, ",")+"\n", ""), nil
	case "fault":
		return nil, ErrToyFault
	case "panic":
		panic("toy panic")
	}
	return Exit(2, "", fmt.Sprintf("toy: unknown instruction %q\n", op)), nil
}
