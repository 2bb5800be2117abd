package codegen

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"tinycxx/pkg/lexer"
	"tinycxx/pkg/parser"
	"tinycxx/pkg/vm"
)

func runSource(t *testing.T, src string) (string, *vm.VM) {
	t.Helper()
	toks, err := lexer.Lex(src, "t.cpp")
	be.Err(t, err, nil)
	prog, err := parser.Parse(toks, src)
	be.Err(t, err, nil)
	container, _, err := Generate(prog)
	be.Err(t, err, nil)

	m := vm.New(container)
	var out strings.Builder
	m.Print = func(s string) { out.WriteString(s) }
	m.Run()
	return out.String(), m
}

func TestGenerateArithmeticAndPrint(t *testing.T) {
	out, m := runSource(t, `
		int main() {
			int a = 10;
			int b = 20;
			std::cout << a + b;
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, out, "30")
}

func TestGenerateIterativeLoop(t *testing.T) {
	out, m := runSource(t, `
		int main() {
			for (int i = 1; i <= 10; i = i + 1) {
				std::cout << i;
			}
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, out, "12345678910")
}

func TestGenerateRecursiveFactorial(t *testing.T) {
	out, m := runSource(t, `
		int fact(int n) {
			if (n <= 1) {
				return 1;
			}
			return n * fact(n - 1);
		}
		int main() {
			std::cout << fact(5);
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, out, "120")
}

func TestGenerateCompoundAssignmentAccumulates(t *testing.T) {
	out, m := runSource(t, `
		int main() {
			int total = 0;
			int i = 1;
			while (i <= 5) {
				total += i;
				i = i + 1;
			}
			std::cout << total;
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, out, "15")
}

func TestGenerateHeapAllocationRoundTrip(t *testing.T) {
	out, m := runSource(t, `
		int main() {
			int* p = new int;
			*p = 24;
			std::cout << *p;
			delete p;
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, out, "24")
}

func TestGenerateDivisionByZeroFaultsWithExactMessage(t *testing.T) {
	_, m := runSource(t, `
		int main() {
			int a = 1;
			int b = 0;
			std::cout << a / b;
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, true)
	be.Equal(t, strings.Contains(m.ErrorMsg, "Division by zero"), true)
}

func TestGenerateBooleanComparisonPushesIntegerFlag(t *testing.T) {
	out, m := runSource(t, `
		int main() {
			std::cout << (3 < 5);
			std::cout << (5 < 3);
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, out, "10")
}

func TestGenerateStringLiteralPrint(t *testing.T) {
	out, m := runSource(t, `
		int main() {
			std::cout << "hi";
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, out, "hi")
}

func TestGenerateFloatParameterIsTruncatedToIntAtCallBoundary(t *testing.T) {
	out, m := runSource(t, `
		int half(float x) {
			return x / 2;
		}
		int main() {
			std::cout << half(9.0);
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, out, "4")
}

func TestGenerateArrayElementAssignmentInFunctionReturnsCleanly(t *testing.T) {
	out, m := runSource(t, `
		int setAndSum(int xs[4], int i, int v) {
			xs[i] = v;
			return xs[0] + xs[1] + xs[2] + xs[3];
		}
		int main() {
			int xs[4] = {1, 2, 3, 4};
			std::cout << setAndSum(xs, 2, 100);
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, out, "107")
	be.Equal(t, len(m.IntStack), 0)
}

func TestGenerateUndefinedLabelAbortsEmission(t *testing.T) {
	toks, err := lexer.Lex(`int main() { return missingFn(); }`, "t.cpp")
	be.Err(t, err, nil)
	prog, err := parser.Parse(toks, "")
	be.Err(t, err, nil)
	_, _, err = Generate(prog)
	be.Equal(t, err != nil, true)
}
