// Package main provides the entry point for the Thermal Tracer application.
package main

import (
	"log"
	"os"

	fyneapp "fyne.io/fyne/v2/app"

	"thermal-tracer/internal/app"
	"thermal-tracer/internal/detect"
	"thermal-tracer/internal/interaction"
	"thermal-tracer/ui/mainwindow"
	"thermal-tracer/ui/prefs"
)

const (
	appTitle   = "Thermal Tracer"
	appVersion = "0.1.0"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s v%s", appTitle, appVersion)

	fyneApp := fyneapp.NewWithID("thermal-tracer")
	appPrefs := prefs.Load()

	inspectionID := "local"
	if len(os.Args) > 2 {
		inspectionID = os.Args[2]
	}

	session := app.NewSession(inspectionID)

	actor := appPrefs.String(prefs.KeyInspectorName)
	if actor == "" {
		actor = "inspector"
	}
	machine := interaction.NewMachine(session, session.Store, actor)

	var oracle detect.Oracle
	if url := appPrefs.String(prefs.KeyDetectorURL); url != "" {
		oracle = detect.NewClient(url)
	} else {
		log.Println("No detector URL configured, using local detector")
		oracle = detect.NewLocalDetector()
	}

	win := mainwindow.New(fyneApp, appPrefs, session, machine, oracle)

	if len(os.Args) > 1 {
		imagePath := os.Args[1]
		if err := session.LoadImage(imagePath); err != nil {
			log.Printf("Failed to load image %s: %v", imagePath, err)
		}
	}

	win.ShowAndRun()
}
