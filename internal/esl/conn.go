package esl

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// message is one framed unit on an Event Socket connection: MIME-style
// headers, a blank line, then an optional Content-Length body.
type message struct {
	headers map[string]string
	body    string
}

func (m *message) contentType() string {
	return m.headers["Content-Type"]
}

func (m *message) replyText() string {
	return m.headers["Reply-Text"]
}

// conn wraps one TCP connection to the Event Socket and owns its read
// buffer. It is not safe for concurrent reads; the owning loop serialises.
type conn struct {
	tcp net.Conn
	r   *bufio.Reader
}

func dialESL(addr, password string, timeout time.Duration) (*conn, error) {
	tcp, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial event socket: %w", err)
	}

	c := &conn{tcp: tcp, r: bufio.NewReader(tcp)}

	// The softswitch greets with an auth request before anything else.
	greeting, err := c.readMessage()
	if err != nil {
		tcp.Close()
		return nil, fmt.Errorf("read auth request: %w", err)
	}
	if greeting.contentType() != "auth/request" {
		tcp.Close()
		return nil, fmt.Errorf("unexpected greeting content type %q", greeting.contentType())
	}

	if err := c.send("auth " + password); err != nil {
		tcp.Close()
		return nil, fmt.Errorf("send auth: %w", err)
	}
	reply, err := c.readMessage()
	if err != nil {
		tcp.Close()
		return nil, fmt.Errorf("read auth reply: %w", err)
	}
	if !strings.HasPrefix(reply.replyText(), "+OK") {
		tcp.Close()
		return nil, fmt.Errorf("authentication refused: %s", reply.replyText())
	}

	return c, nil
}

// send writes one command. Commands are terminated by a double newline.
func (c *conn) send(cmd string) error {
	_, err := io.WriteString(c.tcp, cmd+"\n\n")
	return err
}

// readMessage reads one framed message. Malformed framing is a hard
// protocol error; the caller aborts this connection.
func (c *conn) readMessage() (*message, error) {
	m := &message{headers: make(map[string]string)}

	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		m.headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	if cl := m.headers["Content-Length"]; cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil {
			return nil, fmt.Errorf("malformed Content-Length %q", cl)
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(c.r, body); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		m.body = string(body)
	}

	return m, nil
}

func (c *conn) setReadDeadline(t time.Time) {
	_ = c.tcp.SetReadDeadline(t)
}

func (c *conn) close() {
	_ = c.tcp.Close()
}
