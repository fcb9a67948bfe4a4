package machine

import (
	"context"

	"github.com/ikastra/dlprun/images"
)

// NoopProjector satisfies Projector without hardware, for dry runs and
// light-only rigs.
type NoopProjector struct{}

func (NoopProjector) Select(context.Context, images.Image) error { return nil }
func (NoopProjector) SetDisplay(context.Context, bool) error     { return nil }

// NoopLight satisfies Light without hardware.
type NoopLight struct{}

func (NoopLight) SetLight(context.Context, bool) error { return nil }

var (
	_ Projector = NoopProjector{}
	_ Light     = NoopLight{}
)
