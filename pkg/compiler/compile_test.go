package compiler

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"tinycxx/pkg/bytecode"
	"tinycxx/pkg/vm"
)

func TestCompileEndToEndEulerApproximation(t *testing.T) {
	src := `
		int main() {
			double e = 1.0;
			double term = 1.0;
			for (int i = 1; i <= 10; i = i + 1) {
				term /= i;
				e += term;
			}
			std::cout << e;
			return 0;
		}
	`
	result, err := Compile(src, "euler.cpp")
	be.Err(t, err, nil)
	be.Equal(t, len(result.Bytes) > 0, true)

	decoded, err := bytecode.Decode(result.Bytes)
	be.Err(t, err, nil)

	m := vm.New(decoded)
	var out strings.Builder
	m.Print = func(s string) { out.WriteString(s) }
	m.Run()
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, strings.HasPrefix(out.String(), "2.71828"), true)
}

func TestCompileLexErrorIsReported(t *testing.T) {
	_, err := Compile(`"unterminated`, "bad.cpp")
	be.Equal(t, err != nil, true)
}

func TestCompileParseErrorIsReported(t *testing.T) {
	_, err := Compile(`int main() { return`, "bad.cpp")
	be.Equal(t, err != nil, true)
}

func TestCompileBytesRoundTripThroughContainer(t *testing.T) {
	result, err := Compile("int main() { return 0; }", "t.cpp")
	be.Err(t, err, nil)
	decoded, err := bytecode.Decode(result.Bytes)
	be.Err(t, err, nil)
	be.Equal(t, decoded.Code, result.Container.Code)
}
