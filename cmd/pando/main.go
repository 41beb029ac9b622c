// Command pando runs a PANDO system description against a workload
// binary, driving the simulator to completion and reporting per-core
// statistics (§6, §7).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		// §7: any fatal abort reports a diagnostic line and exits non-zero.
		fmt.Fprintln(os.Stderr, "pando:", err)
		os.Exit(1)
	}
}
