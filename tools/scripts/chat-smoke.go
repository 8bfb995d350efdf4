// Package main provides a CI-friendly smoke test for a running linechat server.
//
// It validates:
//   - name prompt and welcome over TCP
//   - duplicate name rejection
//   - fanout of a chat line to another client (TCP, or WebSocket with -ws)
//   - the sender does not receive its own line
//   - /quit closes the connection
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	promptLine  = "What's your name?"
	subprotocol = "linechat.v1"
)

type smokeClient struct {
	name string
	conn net.Conn
	r    *bufio.Reader
}

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:9000", "Chat TCP address")
		wsURL   = flag.String("ws", "", "Optional WebSocket URL; the second client connects there instead of TCP")
		origin  = flag.String("origin", "http://localhost", "Origin header for the WebSocket handshake")
		text    = flag.String("text", "hello linechat", "Chat line to send")
		timeout = flag.Duration("timeout", 5*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if *wsURL != "" {
		if err := validateWSURL(*wsURL); err != nil {
			fatalf("invalid -ws: %v", err)
		}
	}

	suffix := fmt.Sprintf("%d", time.Now().UnixNano()%1_000_000)
	nameA, nameB := "smoke-a-"+suffix, "smoke-b-"+suffix

	a := mustDialTCP(*addr, "A", *timeout)
	defer a.conn.Close()
	a.mustLogin(nameA, *timeout)

	var b *smokeClient
	if *wsURL != "" {
		b = mustDialWS(*wsURL, *origin, "B", *timeout)
	} else {
		b = mustDialTCP(*addr, "B", *timeout)
	}
	defer b.conn.Close()

	b.mustReadLine(promptLine, *timeout)
	b.mustWrite(nameA)
	b.mustReadPrefix("Name '"+nameA+"' is already taken", *timeout)
	b.mustReadLine(promptLine, *timeout)
	b.mustWrite(nameB)
	b.mustReadLine("Welcome to the chat, "+nameB+"!", *timeout)

	if *verbose {
		fmt.Printf("logged in: A=%s B=%s ws=%v\n", nameA, nameB, *wsURL != "")
	}

	a.mustWrite(*text)
	got := b.mustReadSuffix(" "+nameA+": "+*text, *timeout)
	if *verbose {
		fmt.Printf("B received: %q\n", got)
	}
	a.mustNotReceive(750 * time.Millisecond)

	a.mustWrite("/quit")
	a.mustClosed(*timeout)

	fmt.Printf("OK: A=%s B=%s line=%q\n", nameA, nameB, got)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func mustDialTCP(addr, name string, timeout time.Duration) *smokeClient {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}
	return &smokeClient{name: name, conn: conn, r: bufio.NewReader(conn)}
}

func mustDialWS(wsURL, origin, name string, timeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	ws, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}
	if got := ws.Subprotocol(); got != subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, subprotocol)
	}

	conn := websocket.NetConn(context.Background(), ws, websocket.MessageText)
	return &smokeClient{name: name, conn: conn, r: bufio.NewReader(conn)}
}

func (c *smokeClient) mustLogin(name string, timeout time.Duration) {
	c.mustReadLine(promptLine, timeout)
	c.mustWrite(name)
	c.mustReadLine("Welcome to the chat, "+name+"!", timeout)
}

func (c *smokeClient) mustWrite(line string) {
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		fatalf("write (%s): %v", c.name, err)
	}
}

func (c *smokeClient) readLine(timeout time.Duration) (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := c.r.ReadString('\n')
	return strings.TrimSuffix(line, "\n"), err
}

func (c *smokeClient) mustReadLine(want string, timeout time.Duration) {
	got, err := c.readLine(timeout)
	if err != nil {
		fatalf("read (%s) waiting for %q: %v", c.name, want, err)
	}
	if got != want {
		fatalf("line mismatch (%s): got=%q want=%q", c.name, got, want)
	}
}

func (c *smokeClient) mustReadPrefix(prefix string, timeout time.Duration) {
	got, err := c.readLine(timeout)
	if err != nil {
		fatalf("read (%s) waiting for %q: %v", c.name, prefix, err)
	}
	if !strings.HasPrefix(got, prefix) {
		fatalf("line mismatch (%s): got=%q want prefix %q", c.name, got, prefix)
	}
}

func (c *smokeClient) mustReadSuffix(suffix string, timeout time.Duration) string {
	got, err := c.readLine(timeout)
	if err != nil {
		fatalf("read (%s) waiting for %q: %v", c.name, suffix, err)
	}
	stamp, ok := strings.CutSuffix(got, suffix)
	if !ok || strings.TrimSpace(stamp) == "" {
		fatalf("chat line mismatch (%s): got=%q want <timestamp>%s", c.name, got, suffix)
	}
	return got
}

func (c *smokeClient) mustNotReceive(wait time.Duration) {
	got, err := c.readLine(wait)
	if err == nil {
		fatalf("unexpected line (%s): %q", c.name, got)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		fatalf("read (%s): %v", c.name, err)
	}
}

func (c *smokeClient) mustClosed(timeout time.Duration) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	if _, err := io.ReadAll(c.r); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			fatalf("connection (%s) still open after /quit", c.name)
		}
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
