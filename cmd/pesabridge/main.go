package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pesabridge/pesabridge/pkg/schema"
	"github.com/pesabridge/pesabridge/pkg/sdk"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	addr := os.Getenv("PESABRIDGE_ADDR")
	if addr == "" {
		addr = "http://localhost:7002"
	}
	apiKey := os.Getenv("PESABRIDGE_API_KEY")
	if apiKey == "" {
		log.Fatal("PESABRIDGE_API_KEY must be set")
	}

	client, err := sdk.Connect(addr, apiKey)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	defer client.Disconnect()

	command := strings.ToLower(os.Args[1])
	args := os.Args[2:]

	switch command {
	case "pay":
		if len(args) < 2 {
			log.Fatal("Usage: pesabridge pay <phone> <amount> [reference]")
		}
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			log.Fatalf("Invalid amount %q: %v", args[1], err)
		}
		req := sdk.PaymentRequest{Phone: args[0], Amount: amount}
		if len(args) > 2 {
			req.Reference = args[2]
		}
		resp, err := client.Pay(req)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(resp)

	case "status":
		if len(args) < 1 {
			log.Fatal("Usage: pesabridge status <transactionID>")
		}
		payload, err := client.GetStatus(args[0])
		if err != nil {
			log.Fatal(err)
		}
		printJSON(payload)

	case "watch":
		if len(args) < 1 {
			log.Fatal("Usage: pesabridge watch <transactionID>")
		}
		err := client.SubscribeToUpdates(args[0], func(evt schema.StatusEvent) {
			printJSON(evt)
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Fprintf(os.Stderr, "Watching %s, Ctrl-C to stop...\n", args[0])

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

	default:
		printUsage()
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
}

func printUsage() {
	fmt.Println(`PesaBridge CLI

Usage:
  pesabridge pay <phone> <amount> [reference]   Initiate an STK push
  pesabridge status <transactionID>             Poll transaction status
  pesabridge watch <transactionID>              Stream status updates

Environment:
  PESABRIDGE_ADDR      Gateway base URL (default http://localhost:7002)
  PESABRIDGE_API_KEY   Project API key (required)`)
}
