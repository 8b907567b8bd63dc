package main

import (
	"fmt"
	"os"

	"github.com/yungbote/guildmind-backend/internal/app"
	"github.com/yungbote/guildmind-backend/internal/pkg/envutil"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	runServer := envutil.Bool("RUN_SERVER", true)
	runWorker := envutil.Bool("RUN_WORKER", false)
	runIngestor := envutil.Bool("RUN_INGESTOR", false)
	runReconciler := envutil.Bool("RUN_RECONCILER", false)

	if err := a.Start(runWorker, runIngestor, runReconciler); err != nil {
		a.Log.Error("Failed to start background roles", "error", err)
		os.Exit(1)
	}

	if runServer {
		port := envutil.Str("PORT", "8080")
		fmt.Printf("Server listening on :%s\n", port)
		if err := a.Run(":" + port); err != nil {
			a.Log.Warn("Server failed", "error", err)
		}
		return
	}

	// Worker/ingestor/reconciler-only container: keep process alive.
	select {}
}
