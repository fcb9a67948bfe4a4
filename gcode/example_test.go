package gcode_test

import (
	"fmt"

	"github.com/ikastra/dlprun/gcode"
)

func ExampleParse() {
	ops, err := gcode.Parse(`; layer 1
M6054 "0001.png"
M106 S255
G4 P1500
M106 S0
`)
	if err != nil {
		panic(err)
	}
	for _, op := range ops {
		fmt.Println(op)
	}
	// Output:
	// SELECT_IMAGE "0001.png"
	// DISPLAY_ON
	// WAIT 1.5s
	// DISPLAY_OFF
}
