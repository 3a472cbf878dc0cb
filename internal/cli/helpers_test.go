package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTree creates files below root; keys are slash-separated relative paths
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

const counterSource = `package bank

type CounterLocal interface {
	Add(n int) int
}

//ee::stateless Counter -Views=bank.CounterLocal -MaxSize=4
//ee::interceptors audit.Logger
type CounterBean struct{}

func (c *CounterBean) Add(n int) int { return n }
`

const loggerSource = `package audit

// Logger is an interceptor class.
type Logger struct{}

//ee::aroundinvoke
func (l *Logger) Invoke(ctx any) (any, error) { return nil, nil }
`

const bankDescriptor = `components:
  - name: Counter
    pool:
      max-size: 8
  - name: Ledger
    class: bank.Ledger
    kind: singleton
    init-on-startup: true
`

// bankModule lays out a small module and makes it the working directory
func bankModule(t *testing.T, extra map[string]string) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"go.mod":           "module github.com/acme/bank/v2\n\ngo 1.25\n",
		"bank/counter.go":  counterSource,
		"audit/logger.go":  loggerSource,
		"cmd/bank/main.go": "package main\n\nfunc main() {}\n",
	}
	for k, v := range extra {
		files[k] = v
	}
	writeTree(t, root, files)
	t.Chdir(root)
	return root
}
