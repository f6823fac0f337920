// Package transport implements the client side of a binder connection.
//
// ClientTransport carries transactions over a single TCP connection. Each
// transaction gets a sequence number, and a background goroutine (recvLoop)
// reads reply frames and routes them to the waiting caller:
//
//	caller-1 ──Transact(seq=1)──┐
//	caller-2 ──Transact(seq=2)──┼──→ single TCP conn ──→ binder host
//
//	recvLoop:  ←── reply(seq=2) → pending[2] → caller-2 wakes up
package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"flowgdmp/parcel"
	"flowgdmp/protocol"
)

// DefaultHeartbeatInterval is how often an idle connection is probed.
const DefaultHeartbeatInterval = 30 * time.Second

// ErrClosed is returned for transactions on a closed or broken connection.
var ErrClosed = errors.New("transport closed")

type result struct {
	header *protocol.Header
	body   []byte
	err    error
}

// ClientTransport manages one connection to a binder host.
type ClientTransport struct {
	conn    net.Conn
	seq     uint32     // last sequence number used (protected by sending)
	pending sync.Map   // map[uint32]chan result
	sending sync.Mutex // serializes frame writes
	done    chan struct{}
	once    sync.Once
	err     error // why the connection ended, set before done is closed
	log     *log.Entry
}

// Dial connects to a binder host at addr.
func Dial(ctx context.Context, addr string) (*ClientTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return NewClientTransport(conn, DefaultHeartbeatInterval), nil
}

// NewClientTransport wraps conn and starts the receive and heartbeat loops.
// A non-positive heartbeat interval disables heartbeats.
func NewClientTransport(conn net.Conn, heartbeat time.Duration) *ClientTransport {
	t := &ClientTransport{
		conn: conn,
		done: make(chan struct{}),
		log:  log.WithField("addr", conn.RemoteAddr().String()),
	}
	go t.recvLoop()
	if heartbeat > 0 {
		go t.heartbeatLoop(heartbeat)
	}
	return t
}

// Transact sends one transaction and blocks until its reply arrives, the
// connection breaks, or ctx is done. A reply with a non-OK status is
// returned as *protocol.StatusError and carries no parcel.
func (t *ClientTransport) Transact(ctx context.Context, code uint32, data *parcel.Parcel) (*parcel.Parcel, error) {
	var body []byte
	if data != nil {
		body = data.Bytes()
	}

	seq, ch, err := t.send(code, body)
	if err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.header.Status != protocol.StatusOK {
			return nil, &protocol.StatusError{Code: code, Status: res.header.Status}
		}
		return parcel.FromBytes(res.body), nil
	case <-ctx.Done():
		t.pending.Delete(seq)
		return nil, ctx.Err()
	}
}

func (t *ClientTransport) send(code uint32, body []byte) (uint32, <-chan result, error) {
	t.sending.Lock()
	defer t.sending.Unlock()

	select {
	case <-t.done:
		return 0, nil, t.closedErr()
	default:
	}

	t.seq++
	seq := t.seq

	header := protocol.Header{
		MsgType: protocol.MsgTypeTransaction,
		Seq:     seq,
		Code:    code,
		BodyLen: uint32(len(body)),
	}

	// Register before writing so recvLoop cannot miss a fast reply.
	ch := make(chan result, 1)
	t.pending.Store(seq, ch)

	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, errors.Wrapf(err, "send transaction %d", code)
	}
	t.log.WithFields(log.Fields{"seq": seq, "code": code, "len": len(body)}).Debug("transaction sent")
	return seq, ch, nil
}

// recvLoop is the only reader of the connection.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.shutdown(err)
			return
		}
		if header.MsgType != protocol.MsgTypeReply {
			t.log.WithField("type", header.MsgType).Debug("ignoring non-reply frame")
			continue
		}
		if ch, ok := t.pending.LoadAndDelete(header.Seq); ok {
			ch.(chan result) <- result{header: header, body: body}
		} else {
			t.log.WithField("seq", header.Seq).Debug("reply for unknown transaction")
		}
	}
}

func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
		header := &protocol.Header{MsgType: protocol.MsgTypeHeartbeat}
		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}

// shutdown closes the connection once and fails every pending transaction.
func (t *ClientTransport) shutdown(cause error) {
	t.once.Do(func() {
		t.err = cause
		close(t.done)
		t.conn.Close()
		t.pending.Range(func(key, value any) bool {
			value.(chan result) <- result{err: t.closedErr()}
			t.pending.Delete(key)
			return true
		})
	})
}

func (t *ClientTransport) closedErr() error {
	if t.err == nil {
		return ErrClosed
	}
	return errors.Wrap(ErrClosed, t.err.Error())
}

// Close releases the connection. Pending transactions fail with ErrClosed.
func (t *ClientTransport) Close() error {
	t.shutdown(nil)
	return nil
}

// Done is closed when the connection has ended.
func (t *ClientTransport) Done() <-chan struct{} {
	return t.done
}
