// Command tls13client connects to a server, completes a TLS 1.3
// handshake, sends a minimal HTTP/1.1 request, and prints the first
// application-data record received in response. It exists to exercise
// tls13.Client end-to-end; it is not a general-purpose HTTP client.
package main

import (
	"flag"
	"fmt"
	"os"

	"tls13"
)

func main() {
	host := flag.String("host", "", "server hostname")
	port := flag.Uint("port", 443, "server port")
	flag.Parse()

	if *host == "" {
		fmt.Fprintln(os.Stderr, "usage: tls13client -host example.com [-port 443]")
		os.Exit(2)
	}

	client := tls13.New(*host, uint16(*port), tls13.Options{})
	if err := client.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	request := fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", *host)
	if err := client.SendData([]byte(request)); err != nil {
		fmt.Fprintf(os.Stderr, "send_data: %v\n", err)
		os.Exit(1)
	}

	payload, err := client.ReceiveData()
	if err != nil {
		fmt.Fprintf(os.Stderr, "receive_data: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(payload)
}
