package lan

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/transport"
)

// Default protocol ports and timing.
const (
	DefaultControlPort  = 4003
	DefaultResponsePort = 4002
	DefaultTimeout      = 1 * time.Second

	maxDatagramSize = 2048
)

// Logger defines the logging interface used by the adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the LAN adapter settings.
type Config struct {
	// ControlPort is the device-side UDP port commands are sent to.
	ControlPort int

	// ResponsePort is the local UDP port devices reply to. The protocol
	// fixes this at 4002; a negative value binds an ephemeral port
	// (tests, where the peer replies to the query's source address).
	ResponsePort int

	// Timeout bounds a single query round-trip.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ControlPort == 0 {
		c.ControlPort = DefaultControlPort
	}
	if c.ResponsePort == 0 {
		c.ResponsePort = DefaultResponsePort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Adapter implements transport.Transport over the local UDP protocol.
//
// Send emits one datagram per protocol command with no delivery
// guarantee. Query emits a devStatus datagram and waits for the device
// reply on the shared response listener, bounded by the configured
// timeout. The adapter never retries.
type Adapter struct {
	cfg    Config
	logger Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	waiters map[string][]chan *statusData // keyed by device IP
	closed  bool
}

// New creates a LAN adapter. The response listener is started lazily on
// the first query.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{
		cfg:     cfg,
		logger:  noopLogger{},
		waiters: make(map[string][]chan *statusData),
	}
}

// SetLogger sets the logger for the adapter.
func (a *Adapter) SetLogger(logger Logger) {
	a.logger = logger
}

// Kind identifies this adapter as the LAN transport.
func (a *Adapter) Kind() transport.Kind {
	return transport.KindLAN
}

// Send emits the command datagrams for the desired state.
// A nil return means the datagrams left the socket, nothing more.
func (a *Adapter) Send(ctx context.Context, dev *device.Device, desired transport.DesiredState) error {
	addr, err := a.deviceAddr(dev)
	if err != nil {
		return err
	}

	if desired.Scene != nil {
		return transport.NewRejectedError(transport.ReasonUnsupportedCapability, 0, 0,
			"scenes are not controllable over the local protocol")
	}

	datagrams, err := commandDatagrams(desired)
	if err != nil {
		return transport.NewRejectedError(transport.ReasonBadRequest, 0, 0, err.Error())
	}
	if len(datagrams) == 0 {
		return transport.NewRejectedError(transport.ReasonBadRequest, 0, 0, "no controllable fields in command")
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dialling %s: %w", addr, transport.ErrUnreachable)
	}
	defer conn.Close()

	for _, d := range datagrams {
		if err := ctx.Err(); err != nil {
			return err
		}
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetWriteDeadline(deadline)
		}
		if _, err := conn.Write(d); err != nil {
			return fmt.Errorf("writing datagram to %s: %w", addr, transport.ErrUnreachable)
		}
	}

	a.logger.Debug("lan command sent", "device", dev.ID, "addr", addr.String(), "datagrams", len(datagrams))
	return nil
}

// Query requests current device state via devStatus and waits for the
// reply, bounded by the configured timeout and ctx.
func (a *Adapter) Query(ctx context.Context, dev *device.Device) (*transport.ObservedState, error) {
	addr, err := a.deviceAddr(dev)
	if err != nil {
		return nil, err
	}

	conn, err := a.ensureListener()
	if err != nil {
		return nil, err
	}

	ip := addr.IP.String()
	ch := make(chan *statusData, 1)

	// Concurrent queries to the same device each get their own waiter;
	// the listener fans the reply out to all of them.
	a.mu.Lock()
	a.waiters[ip] = append(a.waiters[ip], ch)
	a.mu.Unlock()
	defer a.removeWaiter(ip, ch)

	payload, err := encodeMessage(cmdStatus, struct{}{})
	if err != nil {
		return nil, fmt.Errorf("encoding status query: %w", err)
	}

	// Send from the listener socket so the reply routes back to it even
	// when the response port is rebound (tests).
	if _, err := conn.WriteToUDP(payload, addr); err != nil {
		return nil, fmt.Errorf("writing status query to %s: %w", addr, transport.ErrUnreachable)
	}

	timer := time.NewTimer(a.cfg.Timeout)
	defer timer.Stop()

	select {
	case status := <-ch:
		obs := status.toObserved()
		obs.ObservedAt = time.Now().UTC()
		a.logger.Debug("lan status received", "device", dev.ID, "addr", ip)
		return obs, nil
	case <-timer.C:
		return nil, fmt.Errorf("no status reply from %s within %s: %w", ip, a.cfg.Timeout, transport.ErrUnreachable)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts down the response listener.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	if a.conn != nil {
		err := a.conn.Close()
		a.conn = nil
		return err
	}
	return nil
}

// removeWaiter unregisters one query's channel, leaving any other
// waiters on the same IP in place.
func (a *Adapter) removeWaiter(ip string, ch chan *statusData) {
	a.mu.Lock()
	defer a.mu.Unlock()

	chans := a.waiters[ip]
	for i, c := range chans {
		if c == ch {
			a.waiters[ip] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(a.waiters[ip]) == 0 {
		delete(a.waiters, ip)
	}
}

// deviceAddr resolves the device's UDP control address.
func (a *Adapter) deviceAddr(dev *device.Device) (*net.UDPAddr, error) {
	if dev == nil || dev.LANAddress == nil || *dev.LANAddress == "" {
		return nil, transport.NewRejectedError(transport.ReasonBadRequest, 0, 0, "device has no lan address")
	}
	ip := net.ParseIP(*dev.LANAddress)
	if ip == nil {
		return nil, transport.NewRejectedError(transport.ReasonBadRequest, 0, 0,
			fmt.Sprintf("invalid lan address %q", *dev.LANAddress))
	}
	return &net.UDPAddr{IP: ip, Port: a.cfg.ControlPort}, nil
}

// ensureListener starts the shared response listener if needed and
// returns its socket.
func (a *Adapter) ensureListener() (*net.UDPConn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, fmt.Errorf("adapter closed: %w", transport.ErrUnreachable)
	}
	if a.conn != nil {
		return a.conn, nil
	}

	port := a.cfg.ResponsePort
	if port < 0 {
		port = 0
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("binding response port %d: %w", port, transport.ErrUnreachable)
	}
	a.conn = conn

	go a.listen(conn)
	return conn, nil
}

// listen reads reply datagrams and routes them by source IP, fanning
// each reply out to every query waiting on that IP. Replies with no
// waiter are dropped.
func (a *Adapter) listen(conn *net.UDPConn) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			a.mu.Lock()
			closed := a.closed
			a.mu.Unlock()
			if !closed {
				a.logger.Warn("lan response listener stopped", "error", err)
			}
			return
		}

		status, err := decodeStatus(buf[:n])
		if err != nil {
			a.logger.Debug("ignoring malformed lan datagram", "from", remote.IP.String(), "error", err)
			continue
		}

		a.mu.Lock()
		chans := append([]chan *statusData(nil), a.waiters[remote.IP.String()]...)
		a.mu.Unlock()

		for _, ch := range chans {
			select {
			case ch <- status:
			default:
			}
		}
	}
}
