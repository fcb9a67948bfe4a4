// Package machine sequences exposure scripts against the projector and
// curing-light ports.
package machine

import (
	"context"

	"github.com/ikastra/dlprun/images"
)

// A Projector selects frames and switches the display output.
type Projector interface {
	Select(ctx context.Context, img images.Image) error
	SetDisplay(ctx context.Context, on bool) error
}

// A Light switches the curing light.
type Light interface {
	SetLight(ctx context.Context, on bool) error
}

// An ImageResolver maps script image names to displayable images. Ref
// must not touch disk; Resolve additionally checks existence.
type ImageResolver interface {
	Ref(name string) images.Image
	Resolve(name string) (images.Image, error)
}

// State is the interpreter's view of the rig: the selected image, both
// output flags, and the current script line.
type State struct {
	Image     string
	DisplayOn bool
	LightOn   bool
	Line      int
}

type Status string

const (
	StatusInit      Status = "init"
	StatusRunning   Status = "running"
	StatusWaiting   Status = "waiting"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
