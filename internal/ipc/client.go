package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("RedShift.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scan triggers a library scan.
func (c *Client) Scan() (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.client.Call("RedShift.Scan", ScanRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncStart starts a sync session.
func (c *Client) SyncStart(req SyncStartRequest) (*SyncStartResponse, error) {
	var resp SyncStartResponse
	if err := c.client.Call("RedShift.SyncStart", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PreIndex seeds the ledger from the device's current contents.
func (c *Client) PreIndex() (*PreIndexResponse, error) {
	var resp PreIndexResponse
	if err := c.client.Call("RedShift.PreIndex", PreIndexRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshLedger prunes ledger rows for deleted library files.
func (c *Client) RefreshLedger() (*RefreshLedgerResponse, error) {
	var resp RefreshLedgerResponse
	if err := c.client.Call("RedShift.RefreshLedger", RefreshLedgerRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Devices lists the devices the daemon currently tracks.
func (c *Client) Devices() (*DevicesResponse, error) {
	var resp DevicesResponse
	if err := c.client.Call("RedShift.Devices", DevicesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sessions fetches recent session history.
func (c *Client) Sessions(limit int) (*SessionsResponse, error) {
	var resp SessionsResponse
	if err := c.client.Call("RedShift.Sessions", SessionsRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests daemon shutdown.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("RedShift.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("RedShift.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("RedShift.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
