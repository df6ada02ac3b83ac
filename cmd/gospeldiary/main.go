package main

import (
	_ "time/tzdata"

	"gospeldiary/cmd/handlers"
)

func main() {
	handlers.Execute()
}
