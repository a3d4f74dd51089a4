// Package ui is the Fyne desktop front-end of the annotator.
package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/engine"
	"github.com/menta2k/image-annotator/pkg/export"
	"github.com/menta2k/image-annotator/pkg/imageio"
	"github.com/menta2k/image-annotator/pkg/suggest"
	"github.com/menta2k/image-annotator/pkg/types"
)

const appID = "io.github.menta2k.image-annotator"

var colorChoices = []string{"", "#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4", "#42d4f4"}

// AnnotatorApp wires the engine, canvas and side panel into one window
type AnnotatorApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config    *config.Config
	logger    *zap.Logger
	suggester *suggest.Suggester

	scene  *Scene
	canvas *Canvas
	engine *engine.Engine

	source      string
	annotations []types.Annotation
	observers   []func(types.ChangeEvent)

	list        *widget.List
	status      *widget.Label
	labelEntry  *widget.Entry
	colorSelect *widget.Select
}

// CreateApp builds the window. suggester may be nil.
func CreateApp(cfg *config.Config, logger *zap.Logger, loader *imageio.Loader, suggester *suggest.Suggester) *AnnotatorApp {
	a := app.NewWithID(appID)
	w := a.NewWindow("Image Annotator")
	w.Resize(fyne.NewSize(float32(cfg.Stage.Width), float32(cfg.Stage.Height)))

	ui := &AnnotatorApp{
		fyneApp:   a,
		mainWin:   w,
		config:    cfg,
		logger:    logger,
		suggester: suggester,
		scene:     NewScene(),
	}
	ui.canvas = NewCanvas(ui.scene)
	opts := append(cfg.EngineOptions(),
		engine.WithLoader(loader),
		engine.WithLogger(logger),
		engine.WithDispatcher(fyne.Do),
		engine.WithOnChange(ui.onChange),
	)
	ui.engine = engine.New(ui.scene, ui.canvas.Container(), opts...)
	ui.canvas.Bind(ui.engine)
	return ui
}

// Engine returns the engine behind the window
func (a *AnnotatorApp) Engine() *engine.Engine {
	return a.engine
}

// Run shows the window, opening source with initial once the app has started,
// and blocks until the window closes.
func (a *AnnotatorApp) Run(source string, initial []types.Annotation) {
	a.mainWin.SetContent(a.layout())

	a.mainWin.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyDelete, fyne.KeyBackspace:
			a.engine.DeleteSelected()
		case fyne.KeyEscape:
			a.engine.CancelDraw()
		}
	})

	if source != "" {
		a.fyneApp.Lifecycle().SetOnStarted(func() {
			a.open(source, initial)
		})
	}

	a.mainWin.SetOnClosed(a.engine.Destroy)
	a.mainWin.ShowAndRun()
}

// layout places the side panel and bars around the canvas. Zoomed content
// is not clipped by Fyne, so the surrounding widgets are drawn over it.
func (a *AnnotatorApp) layout() fyne.CanvasObject {
	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), a.showOpen),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), a.showSave),
		widget.NewToolbarAction(theme.UploadIcon(), a.exportOutputs),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentAddIcon(), a.startDraw),
		widget.NewToolbarAction(theme.CancelIcon(), a.engine.CancelDraw),
		widget.NewToolbarAction(theme.DeleteIcon(), func() { a.engine.DeleteSelected() }),
		widget.NewToolbarAction(theme.ZoomFitIcon(), func() { a.engine.ResetZoom() }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.SearchIcon(), a.runSuggest),
	)

	a.labelEntry = widget.NewEntry()
	a.labelEntry.SetPlaceHolder("Label")
	a.labelEntry.OnSubmitted = func(string) { a.startDraw() }

	a.colorSelect = widget.NewSelect(colorChoices, nil)
	a.colorSelect.PlaceHolder = "Default color"

	fill := widget.NewSlider(0, 1)
	fill.Step = 0.05
	fill.SetValue(a.config.Style.FillOpacity)
	fill.OnChanged = func(v float64) { a.engine.UpdateFillOpacity(v) }

	sel := widget.NewSlider(0, 1)
	sel.Step = 0.05
	sel.SetValue(a.config.Style.SelectOpacity)
	sel.OnChanged = func(v float64) { a.engine.UpdateSelectOpacity(v) }

	a.list = widget.NewList(
		func() int { return len(a.annotations) },
		func() fyne.CanvasObject { return widget.NewLabel("annotation") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			ann := a.annotations[i]
			o.(*widget.Label).SetText(fmt.Sprintf("%s (%s)", ann.Label, ann.ID))
		},
	)
	a.list.OnSelected = func(i widget.ListItemID) {
		if i < len(a.annotations) {
			a.engine.Select(a.annotations[i].ID)
		}
		a.list.UnselectAll()
	}

	rename := widget.NewButtonWithIcon("Rename selected", theme.DocumentCreateIcon(), a.renameSelected)

	sidebar := container.NewBorder(
		container.NewVBox(
			widget.NewLabelWithStyle("Label", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			a.labelEntry,
			a.colorSelect,
			rename,
			widget.NewSeparator(),
			widget.NewLabel("Fill opacity"),
			fill,
			widget.NewLabel("Selected opacity"),
			sel,
			widget.NewSeparator(),
			widget.NewLabelWithStyle("Annotations", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		),
		nil, nil, nil,
		a.list,
	)

	a.status = widget.NewLabel("Open an image to start")

	return container.NewBorder(toolbar, a.status, container.NewPadded(sidebar), nil, a.canvas)
}

// Observe registers fn for every change event after the window has handled it
func (a *AnnotatorApp) Observe(fn func(types.ChangeEvent)) {
	a.observers = append(a.observers, fn)
}

// onChange may run on a bridge goroutine, so widgets are updated via fyne.Do
func (a *AnnotatorApp) onChange(ev types.ChangeEvent) {
	fyne.Do(func() {
		a.setAnnotations(ev.Data)
		if a.status != nil {
			a.status.SetText(fmt.Sprintf("%d annotations | last change: %s", len(ev.Data), ev.Type))
		}
	})
	for _, fn := range a.observers {
		fn(ev)
	}
}

func (a *AnnotatorApp) setAnnotations(anns []types.Annotation) {
	a.annotations = anns
	if a.list != nil {
		a.list.Refresh()
	}
}

func (a *AnnotatorApp) startDraw() {
	info := types.LabelInfo{Label: a.labelEntry.Text}
	if a.colorSelect.Selected != "" {
		info.Metadata = types.Metadata{types.MetaColor: a.colorSelect.Selected}
	}
	if err := a.engine.Draw(info); err != nil {
		dialog.ShowError(err, a.mainWin)
	}
}

func (a *AnnotatorApp) renameSelected() {
	id, ok := a.engine.Selected()
	if !ok {
		return
	}
	info := types.LabelInfo{Label: a.labelEntry.Text}
	for _, ann := range a.annotations {
		if ann.ID == id {
			info.Metadata = ann.Metadata
		}
	}
	if err := a.engine.UpdateLabelName(id, info); err != nil {
		dialog.ShowError(err, a.mainWin)
	}
}

// open loads source off the UI thread and hands the image to the engine
func (a *AnnotatorApp) open(source string, initial []types.Annotation) {
	a.status.SetText("Loading " + source)
	go func() {
		err := a.engine.LoadImageURL(context.Background(), source, initial)
		fyne.Do(func() {
			if errors.Is(err, engine.ErrSuperseded) {
				return
			}
			if err != nil {
				a.logger.Error("failed to open image", zap.String("source", source), zap.Error(err))
				dialog.ShowError(err, a.mainWin)
				return
			}
			a.source = source
			a.mainWin.SetTitle("Image Annotator - " + filepath.Base(source))
		})
	}()
}

func (a *AnnotatorApp) showOpen() {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		rc.Close()
		a.open(path, nil)
	}, a.mainWin)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff"}))
	d.Show()
}

func (a *AnnotatorApp) showSave() {
	d := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		if wc == nil {
			return
		}
		path := wc.URI().Path()
		wc.Close()
		if err := utils.WriteAnnotations(path, a.engine.Annotations()); err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		a.status.SetText("Saved " + path)
	}, a.mainWin)
	d.SetFileName("annotations.json")
	d.Show()
}

// exportOutputs writes the overlay and one crop per annotation to the output directory
func (a *AnnotatorApp) exportOutputs() {
	img := a.engine.Image()
	if img == nil {
		return
	}
	anns := a.engine.Annotations()
	st := a.engine.Style()
	out := a.config.Output
	opts := a.config.OutputSettings()

	go func() {
		overlay, err := export.SaveOverlay(img, anns, st, a.source, out.OutputDir, out.Suffix, opts)
		var crops []export.Result
		if err == nil {
			crops, err = export.SaveCrops(img, anns, a.source, filepath.Join(out.OutputDir, "crops"), opts)
		}
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, a.mainWin)
				return
			}
			a.status.SetText(fmt.Sprintf("Exported %s and %d crops", overlay, len(crops)))
		})
	}()
}

// runSuggest asks the vision model for objects and adds them as annotations
func (a *AnnotatorApp) runSuggest() {
	img := a.engine.Image()
	if a.suggester == nil || img == nil {
		dialog.ShowInformation("Suggest", "No vision backend configured or no image loaded", a.mainWin)
		return
	}
	a.status.SetText("Asking " + a.suggester.Config().Model + "...")

	go func() {
		res, err := a.suggester.Suggest(context.Background(), img)
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, a.mainWin)
				return
			}
			batch := make([]types.Annotation, len(res.Annotations))
			for i, ann := range res.Annotations {
				ann.ID = ""
				batch[i] = ann
			}
			added, err := a.engine.AddAnnotations(batch)
			if err != nil {
				a.logger.Warn("some suggestions were rejected", zap.Error(err))
			}
			a.status.SetText(fmt.Sprintf("Added %d suggestions (%s)", added, res.Description))
		})
	}()
}
