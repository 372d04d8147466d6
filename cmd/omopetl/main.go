// Command omopetl compiles ETL workflows into execution plans.
package main

import (
	"os"

	"github.com/CoReason-AI/omopcloudetl-core/cmd/omopetl/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
