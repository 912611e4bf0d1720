package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/framerelay/internal/server"
)

func main() {
	config := server.NewConfigFromEnv()

	relay, err := server.New(config)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := relay.Start(); err != nil {
		log.Printf("Failed to open server at: %s", config.Addr)
		log.Fatal(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	if err := relay.Shutdown(5 * time.Second); err != nil {
		log.Printf("Shutdown finished with errors: %v", err)
		os.Exit(1)
	}
}
