package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"classpoll/internal/app"
	"classpoll/internal/config"
	"classpoll/pkg/types"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run joins the session under the requested role and keeps the client
// alive until SIGINT/SIGTERM. Rendering is left to whatever front-end
// consumes the engine; this binary exercises the full join flow.
func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not load .env file: %v", err)
	}

	var (
		role       = flag.String("role", types.RoleStudent, "client role: TEACHER or STUDENT")
		name       = flag.String("name", "", "display name (defaults to Teacher for the teacher role)")
		serverURL  = flag.String("server", "", "server base URL (overrides config file and environment)")
		configPath = flag.String("config", os.Getenv("CLASSPOLL_CONFIG_FILE"), "path to JSON config file")
	)
	flag.Parse()

	chosenRole := strings.ToUpper(*role)
	if !types.IsValidRole(chosenRole) {
		return fmt.Errorf("invalid role %q: must be TEACHER or STUDENT", *role)
	}

	displayName := *name
	if displayName == "" {
		if chosenRole == types.RoleTeacher {
			displayName = "Teacher"
		} else {
			return fmt.Errorf("students must pass -name")
		}
	}

	cfg := config.LoadConfigWithPrecedence(*configPath)
	applyServerOverride(cfg, *serverURL)

	client, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		return err
	}
	defer client.Stop()

	if client.WasKicked() && chosenRole == types.RoleStudent {
		return fmt.Errorf("this client was removed from the session")
	}

	switch chosenRole {
	case types.RoleTeacher:
		sid, err := client.JoinAsTeacher(ctx, displayName)
		if err != nil {
			return fmt.Errorf("failed to join as teacher: %w", err)
		}
		if sid != "" {
			log.Printf("Polling session ready: id=%s", sid)
		}
	case types.RoleStudent:
		if err := client.JoinAsStudent(displayName); err != nil {
			return fmt.Errorf("failed to join as student: %w", err)
		}
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalCh
	log.Printf("Received signal %v, shutting down", sig)
	return nil
}

// applyServerOverride lets an explicit -server flag win over the file
// and environment configuration.
func applyServerOverride(cfg *config.Config, serverURL string) {
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
}
