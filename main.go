package main

import (
	"log"

	"github.com/dkovalenko/cvrank/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
