package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

// RemoteError is an error returned by the server. It unwraps to the
// sentinel matching Code.
type RemoteError struct {
	Method  string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc %s: %s", e.Method, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return apperrors.FromCode(e.Code)
}

// ErrConnBroken is returned by calls on a Client whose connection was closed
// after a failed read or write. Dial a new Client to recover.
var ErrConnBroken = errors.New("rpc: connection broken")

// Client is a lightweight JSON-over-TCP RPC client. Calls are serialised
// over one connection. A transport failure mid-call leaves the stream out of
// step with the server, so the client closes the connection and fails every
// later call with ErrConnBroken.
type Client struct {
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	mu      sync.Mutex
	nextID  int64
	broken  error
}

// Dial connects to an RPC server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		decoder: json.NewDecoder(conn),
	}, nil
}

// Call invokes method with params and decodes the response into result.
// The context deadline, if any, bounds the round trip. Call is safe for
// concurrent use.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return fmt.Errorf("%w: %v", ErrConnBroken, c.broken)
	}
	c.nextID++
	id := strconv.FormatInt(c.nextID, 10)

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("setting deadline: %w", err)
	}

	if err := c.encoder.Encode(Request{Method: method, ID: id, Params: raw}); err != nil {
		return c.fail(fmt.Errorf("sending request: %w", err))
	}

	var resp Response
	if err := c.decoder.Decode(&resp); err != nil {
		return c.fail(fmt.Errorf("reading response: %w", err))
	}
	if resp.ID != id {
		return c.fail(fmt.Errorf("response id %q does not match request id %q", resp.ID, id))
	}
	if resp.Error != "" {
		return &RemoteError{Method: method, Code: resp.Code, Message: resp.Error}
	}

	if result != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("unmarshaling into result: %w", err)
		}
	}
	return nil
}

// fail marks the client broken and closes the connection. Callers hold mu.
func (c *Client) fail(err error) error {
	c.broken = err
	c.conn.Close()
	return err
}

// Close closes the underlying TCP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
