// Command apikey stores the Databento API key in ~/.databento_api_key, or
// shows the configured key masked.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"futurescli/internal/config"
	"futurescli/internal/infrastructure"
)

func main() {
	file := flag.String("file", "", "key file (default ~/.databento_api_key)")
	key := flag.String("key", "", "key to store; read from stdin when empty")
	show := flag.Bool("show", false, "print the configured key, masked, and exit")
	flag.Parse()

	logger := infrastructure.CLILogger("info")

	if *show {
		secret, err := config.LoadAPIKey(*file)
		if err != nil {
			logger.Error("No API key configured", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Println(secret)
		return
	}

	value := strings.TrimSpace(*key)
	if value == "" {
		fmt.Fprint(os.Stderr, "Databento API key: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			logger.Error("Cannot read key", slog.String("error", err.Error()))
			os.Exit(1)
		}
		value = strings.TrimSpace(line)
	}

	path, err := config.SaveAPIKey(*file, config.Secret(value))
	if err != nil {
		logger.Error("Cannot save API key", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("API key saved", slog.String("path", path), slog.Any("key", config.Secret(value)))
}
