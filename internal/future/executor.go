package future

// Executor selects where a continuation body runs. The antecedent task's
// completion dispatch hands the body to the executor; the executor decides
// which goroutine actually invokes it.
type Executor interface {
	Execute(fn func())
}

type inlineExecutor struct{}

func (inlineExecutor) Execute(fn func()) { fn() }

// Inline is the default executor: the continuation body runs synchronously
// in whatever goroutine drives the antecedent task's completion.
var Inline Executor = inlineExecutor{}
