package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/arvicollection/authcore/internal/auth/app"
	"github.com/arvicollection/authcore/pkg/authsdk"

	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(healthcheck(cfg.Port))
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

// healthcheck probes the local readiness endpoint for container health checks.
func healthcheck(port int) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client := authsdk.NewSDKClient(fmt.Sprintf("http://127.0.0.1:%d", port))
	health, err := client.GetReadiness(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "not ready: %v\n", err)
		if health != nil && health.Checks != nil {
			fmt.Fprintf(os.Stderr, "store=%s signer=%s\n", health.Checks.Store, health.Checks.Signer)
		}
		return 1
	}
	fmt.Println(health.Status)
	return 0
}
