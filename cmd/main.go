package main

import (
	"fmt"
	"os"

	"github.com/yungbote/loanbook-backend/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	application.Start()
	if err := application.Run(); err != nil {
		application.Log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
