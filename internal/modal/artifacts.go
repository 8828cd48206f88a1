package modal

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"easyapply-engine/internal/browser"
)

const (
	ScreenshotFile = "debug_screenshot.png"
	PageFile       = "debug_page.html"
)

// Artifacts writes the screenshot and markup of a page the engine gave up
// on. A nil *Artifacts writes nothing.
type Artifacts struct {
	Dir    string
	logger *zap.Logger
}

func NewArtifacts(dir string, logger *zap.Logger) *Artifacts {
	return &Artifacts{Dir: dir, logger: logger.Named("artifacts")}
}

// Save is best-effort: failures are logged only.
func (a *Artifacts) Save(ctx context.Context, drv browser.Driver) {
	if a == nil || a.Dir == "" {
		return
	}
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		a.logger.Warn("artifacts dir", zap.Error(err))
		return
	}

	if png, err := drv.Screenshot(ctx); err != nil {
		if !errors.Is(err, browser.ErrUnsupported) {
			a.logger.Warn("screenshot failed", zap.Error(err))
		}
	} else {
		a.write(ScreenshotFile, png)
	}

	if src, err := drv.PageSource(ctx); err != nil {
		a.logger.Warn("page source failed", zap.Error(err))
	} else {
		a.write(PageFile, []byte(src))
	}
}

func (a *Artifacts) write(name string, b []byte) {
	path := filepath.Join(a.Dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		a.logger.Warn("write artifact", zap.String("path", path), zap.Error(err))
		return
	}
	a.logger.Info("wrote artifact", zap.String("path", path))
}
