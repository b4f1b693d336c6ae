// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"fmt"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"thermal-tracer/internal/annotation"
	"thermal-tracer/internal/app"
	"thermal-tracer/internal/detect"
	"thermal-tracer/internal/interaction"
	"thermal-tracer/ui/canvas"
	"thermal-tracer/ui/prefs"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app     fyne.App
	prefs   *prefs.Prefs
	session *app.Session
	machine *interaction.Machine
	oracle  detect.Oracle

	canvas      *canvas.AnnotationCanvas
	historyList *widget.List
	statusBar   *widget.Label
}

// New creates the main window over an open session.
func New(fyneApp fyne.App, p *prefs.Prefs, session *app.Session, machine *interaction.Machine, oracle detect.Oracle) *MainWindow {
	win := fyneApp.NewWindow("Thermal Tracer")

	mw := &MainWindow{
		Window:  win,
		app:     fyneApp,
		prefs:   p,
		session: session,
		machine: machine,
		oracle:  oracle,
	}

	mw.setupUI()
	mw.setupKeys()
	mw.setupEventHandlers()
	mw.Resize(fyne.NewSize(1100, 700))

	return mw
}

func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewAnnotationCanvas(mw.session, mw.machine)
	mw.canvas.OnError(func(err error) {
		mw.setStatus(fmt.Sprintf("Error: %v", err))
	})
	mw.canvas.OnSelectionChange(func(id string) {
		if id == "" {
			mw.setStatus("Ready")
			return
		}
		if a, ok := mw.session.Store.ByID(id); ok {
			mw.setStatus(fmt.Sprintf("Box #%d: %s (%s, v%d)", a.BoxNumber, a.ClassName, a.Status, a.Version))
		}
	})

	mw.historyList = widget.NewList(
		func() int { return mw.session.History.Len() },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			entries := mw.session.History.Entries()
			if i < len(entries) {
				o.(*widget.Label).SetText(entries[i].Summary)
			}
		},
	)

	mw.statusBar = widget.NewLabel("Ready")

	canvasArea := container.NewBorder(
		mw.createToolbar(), // top
		nil, nil, nil,
		mw.canvas,
	)

	split := container.NewHSplit(canvasArea, mw.historyList)
	split.SetOffset(0.78)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil, nil,
		split,
	)
	mw.SetContent(content)
}

func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	modeSelect := widget.NewSelect([]string{"View", "Edit", "Draw"}, func(value string) {
		switch value {
		case "Edit":
			mw.machine.SetMode(interaction.ModeEdit)
		case "Draw":
			mw.machine.SetMode(interaction.ModeDraw)
		default:
			mw.machine.SetMode(interaction.ModeView)
		}
		mw.canvas.Refresh()
	})
	modeSelect.SetSelected("View")

	classNames := make([]string, 0, len(annotation.Classes()))
	for _, c := range annotation.Classes() {
		classNames = append(classNames, c.Name)
	}
	classSelect := widget.NewSelect(classNames, func(value string) {
		if c, ok := annotation.ClassByName(value); ok {
			mw.machine.SetClass(c)
		}
	})
	classSelect.SetSelected(annotation.ClassFaulty.Name)

	openBtn := widget.NewButton("Open Image...", mw.onOpenImage)
	detectBtn := widget.NewButton("Detect", mw.onRunDetection)
	approveBtn := widget.NewButton("Approve", mw.onApprove)
	rejectBtn := widget.NewButton("Reject", mw.onReject)
	captureBtn := widget.NewButton("Save Capture", mw.onSaveCapture)

	zoomOutBtn := widget.NewButton("-", mw.canvas.ZoomOut)
	zoomInBtn := widget.NewButton("+", mw.canvas.ZoomIn)
	fitBtn := widget.NewButton("Fit", mw.canvas.FitToWindow)

	return container.NewHBox(
		openBtn,
		widget.NewSeparator(),
		widget.NewLabel("Mode:"), modeSelect,
		widget.NewLabel("Class:"), classSelect,
		widget.NewSeparator(),
		detectBtn, approveBtn, rejectBtn, captureBtn,
		widget.NewSeparator(),
		widget.NewLabel("Zoom:"), zoomOutBtn, zoomInBtn, fitBtn,
	)
}

func (mw *MainWindow) setupKeys() {
	mw.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyDelete, fyne.KeyBackspace:
			mw.canvas.DeleteSelected()
		}
	})
}

func (mw *MainWindow) setupEventHandlers() {
	mw.session.On(app.EventAnnotationsChanged, func(data interface{}) {
		mw.historyList.Refresh()
	})
	mw.session.On(app.EventDetectionComplete, func(data interface{}) {
		if created, ok := data.([]*annotation.Annotation); ok {
			mw.setStatus(fmt.Sprintf("Detection complete: %d boxes", len(created)))
		}
	})
	mw.session.On(app.EventCaptureSaved, func(data interface{}) {
		mw.setStatus("Annotated capture saved")
	})
}

func (mw *MainWindow) setStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) actor() string {
	if name := mw.prefs.String(prefs.KeyInspectorName); name != "" {
		return name
	}
	return "inspector"
}

func (mw *MainWindow) onOpenImage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		if err := mw.session.LoadImage(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.prefs.Set(prefs.KeyLastDirectory, filepath.Dir(path))
		mw.prefs.Set(prefs.KeyLastImage, path)
		_ = mw.prefs.Save()
		mw.setStatus("Loaded " + filepath.Base(path))
	}, mw.Window)

	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}))
	if last := mw.prefs.String(prefs.KeyLastDirectory); last != "" {
		if uri, err := storage.ParseURI("file://" + last); err == nil {
			if lister, err := storage.ListerForURI(uri); err == nil {
				fd.SetLocation(lister)
			}
		}
	}
	fd.Show()
}

func (mw *MainWindow) onRunDetection() {
	threshold := mw.prefs.Float(prefs.KeyConfidenceThreshold)
	mw.setStatus("Running detection...")

	created, err := mw.session.RunDetection(context.Background(), mw.oracle, threshold, mw.actor())
	if err != nil {
		dialog.ShowError(err, mw.Window)
		mw.setStatus("Detection failed")
		return
	}
	if len(created) == 0 {
		mw.setStatus("Detection complete: no faults found")
	}
	mw.canvas.Refresh()
}

func (mw *MainWindow) onApprove() {
	id := mw.machine.SelectedID()
	if id == "" {
		mw.setStatus("Select a box to approve")
		return
	}
	if err := mw.machine.Approve(); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.canvas.Refresh()
	mw.setStatus("Box approved")
}

func (mw *MainWindow) onReject() {
	id := mw.machine.SelectedID()
	if id == "" {
		mw.setStatus("Select a box to reject")
		return
	}

	entry := widget.NewEntry()
	entry.SetPlaceHolder("Reason (optional)")
	dialog.ShowForm("Reject Annotation", "Reject", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Reason", entry)},
		func(confirmed bool) {
			if !confirmed {
				return
			}
			if err := mw.machine.Reject(entry.Text); err != nil {
				dialog.ShowError(err, mw.Window)
				return
			}
			mw.canvas.Refresh()
			mw.setStatus("Box rejected")
		}, mw.Window)
}

func (mw *MainWindow) onSaveCapture() {
	png, err := mw.session.FlattenCapture(mw.actor())
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}

	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		if _, err := writer.Write(png); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.setStatus("Capture written to " + writer.URI().Name())
	}, mw.Window)
	fd.SetFileName("annotated_" + mw.session.InspectionID + ".png")
	fd.Show()
}
