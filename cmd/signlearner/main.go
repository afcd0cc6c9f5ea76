package main

import (
	"os"

	"github.com/brianfdo/signlearner/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
