package layerio

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pixelworldai/alphaflatten/flatten"
)

// Source names one layer: a file and, for EXR, a channel prefix.
type Source struct {
	Path  string
	Layer string
}

func (s Source) String() string {
	if s.Layer == "" {
		return s.Path
	}
	return s.Path + ":" + s.Layer
}

// Loader decodes layer files into a batch tensor.
type Loader struct {
	// Logger receives one debug entry per decoded layer. nil discards
	// them.
	Logger logrus.FieldLogger

	// Concurrency bounds the number of files decoded at once. 0 means
	// runtime.GOMAXPROCS(0).
	Concurrency int
}

// silent is the logger used when a Loader or Saver has none.
var silent = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (l *Loader) logger() logrus.FieldLogger {
	if l.Logger == nil {
		return silent
	}
	return l.Logger
}

// Load decodes sources concurrently and stacks them, in source order, into
// an [N, H, W, 4] tensor. All layers must share one size.
func (l *Loader) Load(ctx context.Context, sources []Source) (*flatten.Tensor, error) {
	if len(sources) == 0 {
		return nil, flatten.ErrNoLayers
	}
	limit := l.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	layers := make([]*flatten.Tensor, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			t, err := DecodeFile(src.Path, src.Layer)
			if err != nil {
				return err
			}
			layers[i] = t
			l.logger().WithFields(logrus.Fields{
				"event":    "layer_decoded",
				"index":    i,
				"source":   src.String(),
				"width":    t.Dim(1),
				"height":   t.Dim(0),
				"duration": time.Since(start).String(),
			}).Debug("Decoded layer")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h, w := layers[0].Dim(0), layers[0].Dim(1)
	for i, t := range layers[1:] {
		if t.Dim(0) != h || t.Dim(1) != w {
			return nil, fmt.Errorf("%w: %s is %dx%d, %s is %dx%d", ErrSizeMismatch,
				sources[0], w, h, sources[i+1], t.Dim(1), t.Dim(0))
		}
	}
	return flatten.Stack(layers...)
}
