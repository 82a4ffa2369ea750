package main

import (
	"log"
	"os"

	"github.com/PatchLens/go-reduce/reduce"
	"github.com/PatchLens/go-reduce/reduce/cmd"
)

func main() {
	log.SetFlags(0)

	config, err := cmd.ParseReplaceFlags()
	if err != nil {
		log.Fatalf("%s%v", reduce.ErrorLogPrefix, err)
	}

	if err := reduce.RunReplace(config, os.Stdout); err != nil {
		log.Fatalf("%s%v", reduce.ErrorLogPrefix, err)
	}
}
