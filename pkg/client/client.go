// Package client implements the DNFS interactive shell's network half: the
// connection to the name server, per-command request/response helpers, and
// the secondary connection a client opens directly to a storage server for
// file-data operations (spec.md §2: "Client→NS (auth + resolve) ->
// optional Client→SS (payload)"). The line-oriented REPL itself lives in
// repl.go; this file and commands.go hold the wire-level plumbing.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/dnfs-project/dnfs/internal/wire"
)

// Client is one logged-in session against a name server. It is not safe
// for concurrent use — spec.md's command surface is one blocking
// request/response exchange at a time per connection.
type Client struct {
	nsConn net.Conn
	nsAddr string

	Username string

	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

// New constructs a Client configured to dial nsAddr; it does not connect
// until Login is called.
func New(nsAddr string, dialTimeout, requestTimeout time.Duration) *Client {
	return &Client{nsAddr: nsAddr, DialTimeout: dialTimeout, RequestTimeout: requestTimeout}
}

// Login dials the name server and authenticates username (spec.md §6:
// the client prompts "Enter username: " then this is the first thing it
// sends). A second concurrent LOGIN for the same user fails with
// LOGIN_FAIL (spec.md §4.2).
func (c *Client) Login(username string) error {
	conn, err := net.DialTimeout("tcp", c.nsAddr, c.DialTimeout)
	if err != nil {
		return fmt.Errorf("connect to name server: %w", err)
	}
	c.nsConn = conn

	req := &wire.Login{Username: username}
	if err := wire.WriteMessage(conn, wire.TypeLogin, req.Marshal()); err != nil {
		conn.Close()
		return err
	}
	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		conn.Close()
		return err
	}
	switch typ {
	case wire.TypeLoginOK:
		c.Username = username
		return nil
	case wire.TypeLoginFail:
		fail, _ := wire.DecodeLoginFail(payload)
		conn.Close()
		if fail != nil {
			return fmt.Errorf("%s", fail.Reason)
		}
		return fmt.Errorf("login rejected")
	default:
		conn.Close()
		return fmt.Errorf("unexpected response to LOGIN")
	}
}

// Close disconnects from the name server, ending the session (spec.md
// §4.2: "Destroyed on disconnect").
func (c *Client) Close() error {
	if c.nsConn == nil {
		return nil
	}
	return c.nsConn.Close()
}

// nsRequest sends one request to the name server and returns the raw
// response, applying RequestTimeout to the whole exchange.
func (c *Client) nsRequest(typ wire.Type, payload []byte) (wire.Type, []byte, error) {
	if c.RequestTimeout > 0 {
		_ = c.nsConn.SetDeadline(time.Now().Add(c.RequestTimeout))
		defer c.nsConn.SetDeadline(time.Time{})
	}
	if err := wire.WriteMessage(c.nsConn, typ, payload); err != nil {
		return 0, nil, err
	}
	return wire.ReadMessage(c.nsConn)
}

// expectOK sends a request and translates a GENERIC_FAIL response into a Go
// error, matching spec.md §7's client-side error/success contract.
func (c *Client) expectOK(typ wire.Type, payload []byte) (string, error) {
	rtyp, rpayload, err := c.nsRequest(typ, payload)
	if err != nil {
		return "", err
	}
	switch rtyp {
	case wire.TypeGenericOK:
		ok, _ := wire.DecodeGenericOK(rpayload)
		if ok != nil {
			return ok.Message, nil
		}
		return "", nil
	case wire.TypeGenericFail:
		fail, _ := wire.DecodeGenericFail(rpayload)
		if fail != nil {
			return "", fmt.Errorf("%s", fail.Message)
		}
		return "", fmt.Errorf("request failed")
	default:
		return "", fmt.Errorf("unexpected response type %d", rtyp)
	}
}

// errFromGenericFail decodes a GENERIC_FAIL payload into a Go error; used by
// handlers expecting a specific success type but that may instead see a
// failure.
func errFromGenericFail(payload []byte) error {
	fail, err := wire.DecodeGenericFail(payload)
	if err != nil || fail == nil {
		return fmt.Errorf("request failed")
	}
	return fmt.Errorf("%s", fail.Message)
}
