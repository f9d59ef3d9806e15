package main

import (
	"log/slog"

	"github.com/opskit/flowline/pkg/flowline"
)

func main() {

	//you may do your own logger setup here or use this default one with slog
	flowline.SetupLogger()

	//nil collaborators install log-only stand-ins; real deployments pass
	//their own Messenger and Notifier implementations
	if err := flowline.Start(nil, nil, nil); err != nil {
		slog.Error("Engine exited with error", "error", err)
	}
}
