// Command otsim runs alert handler scenarios on the simulator.
package main

import "github.com/sarchlab/otsim/otsim/cmd"

func main() {
	cmd.Execute()
}
