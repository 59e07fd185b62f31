package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/todokeeper/internal/cli"
	"github.com/dmitrijs2005/todokeeper/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	if err := cli.Run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}

}
