// Command hivehydeanti is the ops CLI for the signing pipeline. It lets
// an operator exercise initialize and one signing attempt against a real
// /warden/init endpoint without wiring a whole HTTP client, useful for
// integration-testing a server's signature-verification middleware in
// isolation.
package main

import (
	"os"
	"time"

	"hivehydeanti/cmd/hivehydeanti/cmd"
	"hivehydeanti/internal/telemetry"
)

func main() {
	telemetry.Init(telemetry.Config{
		Output:   os.Stdout,
		MinLevel: telemetry.INFO,
		UseColor: true,
	})
	telemetry.InitReporting("hivehydeanti-cli")

	err := cmd.New().Execute()
	telemetry.Flush(2 * time.Second)
	if err != nil {
		os.Exit(1)
	}
}
