package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/Tyrowin/framerelay/internal/frame"
)

const helpText = `
Available commands are:
/quit Disconnects from chat
/nick <x> Change nickname on server to x`

func main() {
	addr := os.Getenv("RELAY_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6000"
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to connect to server at: %s", addr)
	}
	defer conn.Close()
	fmt.Printf("Connected to server at: %s\n", addr)

	go receive(conn)

	fmt.Println("Chat open:\nType /help for info on commands")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		msg := strings.TrimSpace(scanner.Text())
		switch msg {
		case "":
			continue
		case "/help":
			fmt.Println(helpText)
			continue
		case "/quit":
			fmt.Println("Closing chat...")
			return
		}

		if err := frame.Write(conn, []byte(frame.Truncate(msg))); err != nil {
			log.Printf("Failed to send message: %v", err)
			return
		}
	}
}

func receive(conn net.Conn) {
	for {
		buf, err := frame.Read(conn)
		if err != nil {
			fmt.Println("Lost connection with server!")
			os.Exit(0)
		}
		if msg := frame.Decode(buf); len(msg) > 0 {
			fmt.Println(string(msg))
		}
	}
}
