package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

func TestStripTelnet(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"look", "look"},
		{"\xff\xfb\x01look", "look"},
		{"say\x07 hi", "say hi"},
		{"say\thi\r", "say\thi\r"},
		{"\xff\xf1", ""},
	}
	for _, tt := range tests {
		if got := stripTelnet(tt.in); got != tt.want {
			t.Errorf("stripTelnet(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHandleConnection(t *testing.T) {
	env := newTestEnv(t)
	srv := &Server{Game: env.game}
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	done := make(chan struct{})
	go func() {
		srv.handleConnection(context.Background(), serverSide)
		close(done)
	}()

	lines := make(chan string, 64)
	go func() {
		sc := bufio.NewScanner(clientSide)
		for sc.Scan() {
			lines <- strings.TrimRight(sc.Text(), "\r")
		}
		close(lines)
	}()
	expect := func(want string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case l, ok := <-lines:
				if !ok {
					t.Fatalf("connection closed before %q", want)
				}
				if l == want {
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	expect(splashLine)
	fmt.Fprint(clientSide, "create alice secret\r\n")
	expect("A plain lobby.")
	fmt.Fprint(clientSide, "\xff\xfb\x01say hi\r\n")
	expect(`You say "hi"`)
	fmt.Fprint(clientSide, "QUIT\r\n")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleConnection did not return after QUIT")
	}
	if n := env.game.Sessions.Len(); n != 0 {
		t.Errorf("sessions = %d after disconnect", n)
	}
	if got := metricValue(t, env.game.Metrics, "tinymud_connections_total"); got != 1 {
		t.Errorf("connections = %v, want 1", got)
	}
}

func TestServerStart_NothingToListen(t *testing.T) {
	env := newTestEnv(t, withConf(func(c *GameConf) {
		off := false
		c.Cleartext = &off
	}))
	srv := &Server{Game: env.game}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("expected an error with every listener disabled")
	}
}
