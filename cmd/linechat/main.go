package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"linechat/cmd/internal/app"
)

func main() {
	if err := app.Run(os.Args[1:]); err != nil {
		if errors.Is(err, app.ErrUsage) {
			fmt.Fprintln(os.Stderr, "Usage: linechat <port>")
			os.Exit(1)
		}
		log.Fatal(err)
	}
}
