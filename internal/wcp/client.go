// Package wcp speaks the waveform control protocol to a running waveform
// viewer: newline-delimited JSON messages over TCP. The client owns a
// background receive loop; incoming viewer events are handed to a callback
// that the owner serializes against its own state.
package wcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/hdltools/svls/internal/debug"
)

// Message is one protocol frame in either direction.
type Message struct {
	Type     string   `json:"type"`
	Version  string   `json:"version,omitempty"`
	Commands []string `json:"commands,omitempty"`
	Command  string   `json:"command,omitempty"`
	Event    string   `json:"event,omitempty"`
	Names    []string `json:"names,omitempty"`
	Source   string   `json:"source,omitempty"`
	Error    string   `json:"error,omitempty"`
	Message  string   `json:"message,omitempty"`
}

const protocolVersion = "0"

// Client is a connection to a waveform viewer.
type Client struct {
	conn net.Conn

	// onEvent receives viewer-initiated events on the receive goroutine.
	onEvent func(Message)

	wmu    sync.Mutex
	closed chan struct{}
	once   sync.Once
}

// Dial connects to a viewer, sends the greeting, and starts the receive
// loop. onEvent may be nil.
func Dial(ctx context.Context, addr string, onEvent func(Message)) (*Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("waveform viewer at %s: %w", addr, err)
	}
	c := &Client{conn: conn, onEvent: onEvent, closed: make(chan struct{})}
	greeting := Message{
		Type:     "greeting",
		Version:  protocolVersion,
		Commands: []string{"add_variables", "focus_item", "goto_declaration"},
	}
	if err := c.send(greeting); err != nil {
		conn.Close()
		return nil, err
	}
	go c.receiveLoop()
	debug.LogWcp("connected to %s", addr)
	return c, nil
}

// AddVariables asks the viewer to display the given hierarchical signal
// paths.
func (c *Client) AddVariables(paths []string) error {
	return c.send(Message{Type: "command", Command: "add_variables", Names: paths})
}

// FocusItem asks the viewer to focus one signal.
func (c *Client) FocusItem(path string) error {
	return c.send(Message{Type: "command", Command: "focus_item", Names: []string{path}})
}

// Close shuts the connection down; the receive loop exits.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// Done is closed when the connection has shut down.
func (c *Client) Done() <-chan struct{} { return c.closed }

func (c *Client) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.conn.Write(data)
	return err
}

func (c *Client) receiveLoop() {
	defer c.Close()
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			debug.LogWcp("bad frame: %v", err)
			continue
		}
		switch msg.Type {
		case "greeting":
			debug.LogWcp("viewer greeting version=%s", msg.Version)
		case "error":
			debug.LogWcp("viewer error: %s %s", msg.Error, msg.Message)
		default:
			if c.onEvent != nil {
				c.onEvent(msg)
			}
		}
	}
	debug.LogWcp("connection closed")
}
