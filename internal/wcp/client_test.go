package wcp

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeViewer accepts one connection and exchanges frames with the client.
type fakeViewer struct {
	ln     net.Listener
	conn   net.Conn
	reader *bufio.Scanner
}

func newFakeViewer(t *testing.T) *fakeViewer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	v := &fakeViewer{ln: ln}
	t.Cleanup(func() {
		if v.conn != nil {
			v.conn.Close()
		}
		ln.Close()
	})
	return v
}

func (v *fakeViewer) accept(t *testing.T) {
	t.Helper()
	conn, err := v.ln.Accept()
	require.NoError(t, err)
	v.conn = conn
	v.reader = bufio.NewScanner(conn)
}

func (v *fakeViewer) read(t *testing.T) Message {
	t.Helper()
	require.NoError(t, v.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.True(t, v.reader.Scan(), "expected a frame: %v", v.reader.Err())
	var msg Message
	require.NoError(t, json.Unmarshal(v.reader.Bytes(), &msg))
	return msg
}

func (v *fakeViewer) write(t *testing.T, msg Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	_, err = v.conn.Write(append(data, '\n'))
	require.NoError(t, err)
}

func TestDialSendsGreeting(t *testing.T) {
	v := newFakeViewer(t)

	done := make(chan *Client, 1)
	go func() {
		c, err := Dial(context.Background(), v.ln.Addr().String(), nil)
		if err != nil {
			done <- nil
			return
		}
		done <- c
	}()
	v.accept(t)

	greeting := v.read(t)
	assert.Equal(t, "greeting", greeting.Type)
	assert.Equal(t, protocolVersion, greeting.Version)
	assert.Contains(t, greeting.Commands, "add_variables")
	assert.Contains(t, greeting.Commands, "goto_declaration")

	c := <-done
	require.NotNil(t, c)
	c.Close()
	<-c.Done()
}

func TestCommandsAndEvents(t *testing.T) {
	v := newFakeViewer(t)

	events := make(chan Message, 4)
	done := make(chan *Client, 1)
	go func() {
		c, _ := Dial(context.Background(), v.ln.Addr().String(), func(m Message) {
			events <- m
		})
		done <- c
	}()
	v.accept(t)
	v.read(t) // greeting

	c := <-done
	require.NotNil(t, c)
	defer func() {
		c.Close()
		<-c.Done()
	}()

	require.NoError(t, c.AddVariables([]string{"top.cpu.clk", "top.cpu.rst"}))
	cmd := v.read(t)
	assert.Equal(t, "add_variables", cmd.Command)
	assert.Equal(t, []string{"top.cpu.clk", "top.cpu.rst"}, cmd.Names)

	require.NoError(t, c.FocusItem("top.cpu.clk"))
	cmd = v.read(t)
	assert.Equal(t, "focus_item", cmd.Command)

	// Viewer greeting and errors are absorbed; events reach the callback.
	v.write(t, Message{Type: "greeting", Version: protocolVersion})
	v.write(t, Message{Type: "error", Error: "nack", Message: "no such signal"})
	v.write(t, Message{Type: "event", Event: "goto_declaration", Names: []string{"top.cpu.alu0.x"}})

	select {
	case ev := <-events:
		assert.Equal(t, "goto_declaration", ev.Event)
		assert.Equal(t, []string{"top.cpu.alu0.x"}, ev.Names)
	case <-time.After(5 * time.Second):
		t.Fatal("event did not arrive")
	}
}

func TestViewerDisconnectClosesClient(t *testing.T) {
	v := newFakeViewer(t)

	done := make(chan *Client, 1)
	go func() {
		c, _ := Dial(context.Background(), v.ln.Addr().String(), nil)
		done <- c
	}()
	v.accept(t)
	v.read(t) // greeting

	c := <-done
	require.NotNil(t, c)

	v.conn.Close()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not observe disconnect")
	}
}
