package machine

import (
	"io"
	"time"

	"github.com/ikastra/dlprun/gcode"
)

// A Report summarizes a script without touching hardware.
type Report struct {
	Ops       int
	Exposures int
	Waited    time.Duration

	// Images are the referenced names in first-use order; Missing the
	// subset that does not resolve.
	Images  []string
	Missing []string
}

// Preflight walks the whole script, simulating the interpreter state,
// and resolves every referenced image. Parse errors and a display-on
// without a selected image fail immediately; missing images are
// collected in the report.
func Preflight(r gcode.Reader, res ImageResolver) (*Report, error) {
	var rep Report
	seen := make(map[string]bool)

	var selected string
	for {
		op, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rep.Ops++
		switch op.Code {
		case gcode.OpSelectImage:
			selected = op.Image
			if !seen[op.Image] {
				seen[op.Image] = true
				rep.Images = append(rep.Images, op.Image)
			}
		case gcode.OpDisplayOn:
			if selected == "" {
				return nil, &LineError{Line: op.Line, Raw: op.Raw, Err: ErrNoImageSelected}
			}
			rep.Exposures++
		case gcode.OpWait:
			rep.Waited += op.Duration
		}
	}

	for _, name := range rep.Images {
		if _, err := res.Resolve(name); err != nil {
			rep.Missing = append(rep.Missing, name)
		}
	}
	return &rep, nil
}
