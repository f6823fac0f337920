// Package server hosts a Binder on a TCP listener.
//
// Transaction pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each transaction: go handleRequest
//	    → middleware chain → dispatch (interface probe, token check, Binder.OnTransact) → write reply
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"flowgdmp/middleware"
	"flowgdmp/parcel"
	"flowgdmp/protocol"
	"flowgdmp/registry"
)

// RegistrationTTL is the lease, in seconds, under which the host advertises itself.
const RegistrationTTL = 10

// Server hosts one Binder under a service name.
type Server struct {
	name        string
	binder      Binder
	descriptor  parcel.String16
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
	log         *log.Entry

	mu            sync.Mutex
	listener      net.Listener
	conns         map[net.Conn]struct{}
	registry      registry.Registry
	advertiseAddr string

	wg       sync.WaitGroup // in-flight transactions
	shutdown atomic.Bool
}

// NewServer creates a host for b, registered as name.
func NewServer(name string, b Binder) *Server {
	return &Server{
		name:       name,
		binder:     b,
		descriptor: parcel.NewString16(b.Descriptor()),
		conns:      make(map[net.Conn]struct{}),
		log:        log.WithField("service", name),
	}
}

// Use appends a middleware. Middlewares run in the order they were added.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// ListenAndServe listens on address and calls Serve.
func (svr *Server) ListenAndServe(network, address, advertiseAddr string, reg registry.Registry) error {
	l, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return svr.Serve(l, advertiseAddr, reg)
}

// Serve accepts connections on l until Shutdown.
//
// If reg is non-nil the host registers advertiseAddr (or the listener
// address when empty) under its name before accepting.
func (svr *Server) Serve(l net.Listener, advertiseAddr string, reg registry.Registry) error {
	svr.handler = middleware.Chain(svr.middlewares...)(svr.dispatch)

	if advertiseAddr == "" {
		advertiseAddr = l.Addr().String()
	}
	svr.mu.Lock()
	svr.listener = l
	svr.advertiseAddr = advertiseAddr
	svr.registry = reg
	svr.mu.Unlock()

	svr.log.WithField("addr", advertiseAddr).Info("binder host serving")

	if reg != nil {
		err := reg.Register(context.Background(), registry.ServiceInstance{
			Name:       svr.name,
			Addr:       advertiseAddr,
			Descriptor: svr.binder.Descriptor(),
		}, RegistrationTTL)
		if err != nil {
			l.Close()
			return errors.Wrapf(err, "register %s", svr.name)
		}
	}

	for {
		conn, err := l.Accept()
		if err != nil {
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		svr.mu.Lock()
		svr.conns[conn] = struct{}{}
		svr.mu.Unlock()
		go svr.handleConn(conn)
	}
}

// handleConn is the only reader of conn. Each transaction is handled in its
// own goroutine; writeMu keeps reply frames from interleaving.
func (svr *Server) handleConn(conn net.Conn) {
	defer func() {
		svr.mu.Lock()
		delete(svr.conns, conn)
		svr.mu.Unlock()
		conn.Close()
	}()
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			return
		}
		if header.MsgType != protocol.MsgTypeTransaction {
			continue
		}
		if svr.shutdown.Load() {
			return
		}
		svr.wg.Add(1)
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer svr.wg.Done()

	resp := svr.handler(context.Background(), &middleware.Request{
		Code: header.Code,
		Seq:  header.Seq,
		Data: parcel.FromBytes(body),
	})

	var out []byte
	if resp.Status == protocol.StatusOK && resp.Reply != nil {
		out = resp.Reply.Bytes()
	}
	replyHeader := protocol.Header{
		MsgType: protocol.MsgTypeReply,
		Seq:     header.Seq,
		Code:    header.Code,
		Status:  resp.Status,
		BodyLen: uint32(len(out)),
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.Encode(conn, &replyHeader, out); err != nil {
		svr.log.WithError(err).WithField("seq", header.Seq).Warn("failed to write reply")
	}
}

// dispatch answers the interface probe itself, enforces the interface token
// on every other code, then hands the transaction to the Binder.
func (svr *Server) dispatch(ctx context.Context, req *middleware.Request) *middleware.Response {
	reply := parcel.New()

	if req.Code == protocol.InterfaceTransaction {
		reply.WriteString16(svr.descriptor)
		return &middleware.Response{Status: protocol.StatusOK, Reply: reply}
	}
	if req.Code < protocol.FirstCallTransaction || req.Code > protocol.LastCallTransaction {
		return middleware.Failed(protocol.StatusUnknownTransaction)
	}

	token, err := req.Data.ReadInterfaceToken()
	if err != nil || !token.Equal(svr.descriptor) {
		svr.log.WithField("token", token.String()).Warn("interface token mismatch")
		reply.WriteException(parcel.ExceptionSecurity, "Binder invocation to an incorrect interface")
		return &middleware.Response{Status: protocol.StatusOK, Reply: reply}
	}

	reply.WriteNoException()
	err = svr.binder.OnTransact(ctx, req.Code, req.Data, reply)
	if err == nil {
		return &middleware.Response{Status: protocol.StatusOK, Reply: reply}
	}

	var exc *Exception
	switch {
	case errors.Is(err, ErrUnknownTransaction):
		return middleware.Failed(protocol.StatusUnknownTransaction)
	case errors.As(err, &exc):
		reply = parcel.New()
		reply.WriteException(exc.Code, exc.Message)
		return &middleware.Response{Status: protocol.StatusOK, Reply: reply}
	default:
		svr.log.WithError(err).WithField("code", req.Code).Error("transaction handler failed")
		return middleware.Failed(protocol.StatusFailedTransaction)
	}
}

// Addr is the address the host listens on, or nil before Serve.
func (svr *Server) Addr() net.Addr {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

// Shutdown deregisters the host, stops accepting, waits for in-flight
// transactions up to timeout, then closes remaining connections.
func (svr *Server) Shutdown(timeout time.Duration) error {
	svr.mu.Lock()
	l, reg, addr := svr.listener, svr.registry, svr.advertiseAddr
	svr.mu.Unlock()

	// Deregister first so no new caller finds this host.
	if reg != nil {
		if err := reg.Deregister(context.Background(), svr.name, addr); err != nil {
			svr.log.WithError(err).Warn("deregister failed")
		}
	}

	// Set the flag before closing so Serve returns nil.
	svr.shutdown.Store(true)
	if l != nil {
		l.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("timeout waiting for ongoing transactions to finish")
	}

	svr.mu.Lock()
	for conn := range svr.conns {
		conn.Close()
	}
	svr.mu.Unlock()
	return err
}
