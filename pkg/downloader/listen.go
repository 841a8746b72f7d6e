package downloader

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
)

// ListenOnce waits on the loopback port for a single HTTP request, such as
// a browser redirect, answers it with response as HTML and returns the
// request head.
func ListenOnce(ctx context.Context, port int, response string) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return "", fmt.Errorf("failed to listen on %d: %w", port, err)
	}
	return ServeOnce(ctx, ln, response)
}

// ServeOnce is ListenOnce on an existing listener, which it closes.
func ServeOnce(ctx context.Context, ln net.Listener, response string) (string, error) {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer conn.Close()
	stopConn := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopConn()

	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("invalid request: %w", err)
	}
	head, err := httputil.DumpRequest(req, false)
	if err != nil {
		return "", err
	}

	if response == "" {
		_, err = fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")
	} else {
		_, err = fmt.Fprintf(conn, "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
			len(response), response)
	}
	if err != nil {
		return "", err
	}
	return string(head), nil
}
