package main

import "github.com/pilotguru/sensorlog/cmd"

func main() {
	cmd.Execute()
}
