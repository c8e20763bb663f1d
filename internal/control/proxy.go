package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voldap/voldap/internal/directory"
	"github.com/voldap/voldap/internal/ldif"
)

// Drives a directory instance hosted by another process through its
// control API.
type Proxy struct {
	baseURL string
	client  *http.Client
	info    directory.Info
}

// Connects to a control server and fetches the remote instance's
// connection parameters.
func NewProxy(baseURL string) (*Proxy, error) {
	p := &Proxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}

	resp, err := p.client.Get(p.url("config"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrControl, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET /config returned %s", ErrControl, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&p.info); err != nil {
		return nil, fmt.Errorf("%w: decoding config: %v", ErrControl, err)
	}

	return p, nil
}

// Connection parameters of the remote instance.
func (p *Proxy) Info() directory.Info { return p.info }

// The ldap:// URI of the remote listener.
func (p *Proxy) URI() string { return p.info.URI }

// The remote administrator DN.
func (p *Proxy) RootDN() string { return p.info.RootDN }

// The remote administrator password.
func (p *Proxy) RootPW() string { return p.info.RootPW }

// The remote suffix.
func (p *Proxy) Suffix() string { return p.info.Suffix }

// Starts or resets the remote instance.
func (p *Proxy) Start() error {
	return p.post("control/start", nil)
}

// Stops the remote instance.
func (p *Proxy) Stop() error {
	return p.post("control/stop", nil)
}

// Restores the remote instance to its initial data.
func (p *Proxy) Reset() error {
	return p.post("control/reset", nil)
}

// Adds entries to the remote directory, in slice order.
func (p *Proxy) Add(entries []ldif.Entry) error {
	return p.AddLDIF(ldif.Marshal(entries))
}

// Loads an LDIF document into the remote directory.
func (p *Proxy) AddLDIF(data []byte) error {
	return p.post("entry", data)
}

// Fetches one remote entry by DN.
//
// Returns [directory.ErrNotFound] on a miss.
func (p *Proxy) Get(dn string) (map[string][][]byte, error) {
	data, err := p.GetLDIF(dn)
	if err != nil {
		return nil, err
	}

	entries, err := ldif.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if len(entries) != 1 {
		return nil, fmt.Errorf("%w: got %d entries for %s", ErrControl, len(entries), dn)
	}
	return entries[0].Attributes, nil
}

// Fetches one remote entry as an LDIF document.
func (p *Proxy) GetLDIF(dn string) ([]byte, error) {
	resp, err := p.client.Get(p.url("entry") + "/" + url.PathEscape(dn))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrControl, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", directory.ErrNotFound, dn)
	default:
		return nil, fmt.Errorf("%w: GET /entry returned %s", ErrControl, resp.Status)
	}
}

// Polls the remote instance until its process exits.
//
// Each round trip blocks server-side for a few seconds; a 504 means the
// process is still running and polling continues. A non-positive timeout
// polls indefinitely.
func (p *Proxy) Wait(timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		resp, err := p.client.Get(p.url("control/wait"))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrControl, err)
		}
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusNoContent:
			return nil
		case http.StatusGatewayTimeout:
			if !deadline.IsZero() && time.Now().After(deadline) {
				return fmt.Errorf("%w: remote process still running after %s", ErrControl, timeout)
			}
		default:
			return fmt.Errorf("%w: GET /control/wait returned %s", ErrControl, resp.Status)
		}
	}
}

// Issues a POST and checks for a 2xx response.
func (p *Proxy) post(path string, body []byte) error {
	resp, err := p.client.Post(p.url(path), "text/ldif", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrControl, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: POST /%s returned %s: %s", ErrControl, path, resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

func (p *Proxy) url(path string) string {
	return p.baseURL + "/" + path
}
