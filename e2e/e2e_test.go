// Package e2e exercises the full compile-then-execute pipeline against the
// concrete source-to-output scenarios the toolchain is expected to handle.
package e2e

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"tinycxx/pkg/compiler"
	"tinycxx/pkg/vm"
)

func compileAndRun(t *testing.T, src string) (string, *vm.VM) {
	t.Helper()
	result, err := compiler.Compile(src, "scenario.cpp")
	be.Err(t, err, nil)

	m := vm.New(result.Container)
	var out strings.Builder
	m.Print = func(s string) { out.WriteString(s) }
	m.Run()
	return out.String(), m
}

func TestScenarioHelloIntegerSum(t *testing.T) {
	out, m := compileAndRun(t, `
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

func TestScenarioIterativeCounter(t *testing.T) {
	out, m := compileAndRun(t, `
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

func TestScenarioEulerApproximation(t *testing.T) {
	out, m := compileAndRun(t, `
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
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, strings.HasPrefix(out, "2.71828"), true)
}

func TestScenarioHeapRoundTrip(t *testing.T) {
	out, m := compileAndRun(t, `
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

func TestScenarioRecursiveFactorial(t *testing.T) {
	out, m := compileAndRun(t, `
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

func TestScenarioDivisionByZeroFaultsProgramExecution(t *testing.T) {
	_, m := compileAndRun(t, `
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

func TestScenarioArraySumViaStackArray(t *testing.T) {
	out, m := compileAndRun(t, `
		int main() {
			int xs[4] = {1, 2, 3, 4};
			int total = 0;
			for (int i = 0; i < 4; i = i + 1) {
				total += xs[i];
			}
			std::cout << total;
			return 0;
		}
	`)
	be.Equal(t, m.ErrorFlag, false)
	be.Equal(t, out, "10")
}
