//go:build tools
// +build tools

package tools

import (
	_ "github.com/dkorunic/betteralign/cmd/betteralign"
	_ "golang.org/x/perf/cmd/benchstat"
	_ "honnef.co/go/tools/cmd/staticcheck"
)
