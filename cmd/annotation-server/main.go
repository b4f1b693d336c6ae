// Command annotation-server runs the headless annotation review API.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"thermal-tracer/api"
	"thermal-tracer/internal/detect"
	"thermal-tracer/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("ANNOTATION_ADDR", ":8080"), "listen address")
	dbPath := flag.String("db", envOr("ANNOTATION_DB", "annotations.db"), "sqlite database path")
	detectorURL := flag.String("detector", os.Getenv("DETECTOR_URL"), "detection service URL (empty = local detector)")
	flag.Parse()

	db, err := store.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database %s: %v", *dbPath, err)
	}
	defer db.Close()

	var oracle detect.Oracle
	if *detectorURL != "" {
		oracle = detect.NewClient(*detectorURL)
		log.Printf("Using detection service at %s", *detectorURL)
	} else {
		oracle = detect.NewLocalDetector()
		log.Println("No detector URL configured, using local detector")
	}

	server := api.NewServer(db, oracle)
	log.Printf("Annotation server listening on %s (db %s)", *addr, *dbPath)
	if err := http.ListenAndServe(*addr, server.ServeMux()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
