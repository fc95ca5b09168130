package process

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/esinstall/pkg/engine"
)

func result(exit int, lines ...ConsoleOut) *Result {
	return &Result{Command: Command{Path: "tool"}, ExitCode: exit, Output: lines}
}

func out(text string) ConsoleOut { return ConsoleOut{Stream: Stdout, Text: text} }
func errl(text string) ConsoleOut { return ConsoleOut{Stream: Stderr, Text: text} }

func TestProbePolicy(t *testing.T) {
	tests := []struct {
		name string
		res  *Result
		ok   bool
	}{
		{"clean exit", result(0, out("ok")), true},
		{"negative exit", result(-1), true},
		{"positive exit", result(1), false},
		{"stderr line", result(0, errl("warning")), false},
		{"blank stderr ignored", result(0, errl(""), errl("   ")), true},
		{"both", result(2, errl("boom")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ProbePolicy{}.Evaluate(tt.res)
			if (err == nil) != tt.ok {
				t.Errorf("Evaluate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !engine.HasCode(err, engine.ErrCodeProcessFailed) {
				t.Errorf("error not classified: %v", err)
			}
		})
	}
}

func TestStrictExitPolicy(t *testing.T) {
	tests := []struct {
		name        string
		res         *Result
		stderrFatal bool
		ok          bool
	}{
		{"clean exit", result(0), false, true},
		{"negative exit fails", result(-1), false, false},
		{"positive exit fails", result(1), false, false},
		{"stderr logged only", result(0, errl("warn")), false, true},
		{"stderr fatal", result(0, errl("warn")), true, false},
		{"blank stderr never fatal", result(0, errl(" ")), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := StrictExitPolicy{StderrFatal: tt.stderrFatal, Logger: zerolog.Nop()}
			err := p.Evaluate(tt.res)
			if (err == nil) != tt.ok {
				t.Errorf("Evaluate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestCommandArgv(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		want    []string
		wantErr bool
	}{
		{"empty", Command{Path: "x"}, nil, false},
		{"simple", Command{Args: "remove analysis-icu --purge"}, []string{"remove", "analysis-icu", "--purge"}, false},
		{"quoted", Command{Args: `--in "my file.yml"`}, []string{"--in", "my file.yml"}, false},
		{"list wins", Command{Args: "ignored", ArgList: []string{"a b"}}, []string{"a b"}, false},
		{"unterminated", Command{Args: `"open`}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Argv()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Argv() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("arg %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseJavaVersion(t *testing.T) {
	info := parseJavaVersion([]ConsoleOut{
		errl(`java version "1.8.0_151"`),
		errl(`Java(TM) SE Runtime Environment (build 1.8.0_151-b12)`),
		errl(`Java HotSpot(TM) Client VM (build 25.151-b12, mixed mode)`),
	})
	if info.Version == nil || info.Version.Segments()[0] != 1 {
		t.Fatalf("version = %v", info.Version)
	}
	if info.Is64Bit {
		t.Error("client VM reported as 64-bit")
	}
	if len(info.Raw) != 3 {
		t.Errorf("raw = %v", info.Raw)
	}
}
