package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/scenicview/internal/codec"
	"github.com/bryanchriswhite/scenicview/internal/logger"
)

const (
	readTimeout    = 30 * time.Second
	writeTimeout   = 10 * time.Second
	maxRequestSize = 4 * 1024 * 1024
)

// Registry binds names to objects and serves calls on them over TCP.
// It is an explicit handle: whoever creates it owns it and passes it to
// the unbind helpers.
type Registry struct {
	listener net.Listener
	log      *zerolog.Logger

	mu      sync.RWMutex
	objects map[string]Object

	ctx    context.Context
	cancel context.CancelFunc
	active sync.WaitGroup
	served chan struct{}
	once   sync.Once
}

// Listen creates a registry accepting connections on port, on every
// interface. Port 0 picks a free port.
func Listen(port int) (*Registry, error) {
	return ListenAddress(fmt.Sprintf(":%d", port))
}

// ListenAddress creates a registry on a "host:port" address.
func ListenAddress(address string) (*Registry, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		listener: listener,
		log:      logger.WithComponent("registry"),
		objects:  make(map[string]Object),
		ctx:      ctx,
		cancel:   cancel,
		served:   make(chan struct{}),
	}
	go r.serve()

	r.log.Info().Str("address", listener.Addr().String()).Msg("Registry listening")
	return r, nil
}

// Addr returns the listening address.
func (r *Registry) Addr() net.Addr {
	return r.listener.Addr()
}

// Port returns the listening TCP port.
func (r *Registry) Port() int {
	if addr, ok := r.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Bind binds name to object, replacing any previous binding.
func (r *Registry) Bind(name string, object Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[name] = object
	r.log.Debug().Str("name", name).Msg("Bound")
}

// Unbind removes the binding of name. Unbinding a name that is not
// bound does nothing.
func (r *Registry) Unbind(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.objects[name]; !ok {
		r.log.Debug().Str("name", name).Msg("Unbind of unbound name ignored")
		return
	}
	delete(r.objects, name)
	r.log.Debug().Str("name", name).Msg("Unbound")
}

// Lookup returns the object bound to name.
func (r *Registry) Lookup(name string) (Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	object, ok := r.objects[name]
	return object, ok
}

// Names returns the bound names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.objects))
	for name := range r.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close stops accepting connections and waits for in-flight calls.
func (r *Registry) Close() error {
	var err error
	r.once.Do(func() {
		r.cancel()
		err = r.listener.Close()
		<-r.served
	})
	return err
}

func (r *Registry) serve() {
	defer close(r.served)

	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if r.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			r.log.Error().Err(err).Msg("Accept failed")
			continue
		}

		r.active.Add(1)
		go func() {
			defer r.active.Done()
			r.handleConnection(conn)
		}()
	}

	r.active.Wait()
}

// handleConnection processes one request-response cycle.
func (r *Registry) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var request Request
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		r.writeResponse(conn, Response{Code: CodeInvalid, Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	result, err := r.dispatch(request)
	if err != nil {
		r.log.Debug().
			Err(err).
			Str("object", request.Object).
			Str("action", request.Action).
			Msg("Call failed")
		r.writeResponse(conn, Response{Code: codeOf(err), Error: err.Error()})
		return
	}

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			r.writeResponse(conn, Response{Code: CodeFailed, Error: fmt.Sprintf("failed to encode result: %v", err)})
			return
		}
		response.Data = data
	}
	r.writeResponse(conn, response)
}

func (r *Registry) dispatch(request Request) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s.%s panicked: %v", request.Object, request.Action, p)
		}
	}()

	if request.Object == RegistryObject {
		return r.invokeRegistry(request)
	}

	object, ok := r.Lookup(request.Object)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBound, request.Object)
	}
	return object.Invoke(r.ctx, request.Action, request.Params)
}

func (r *Registry) invokeRegistry(request Request) (any, error) {
	switch request.Action {
	case actionLookup:
		params, err := decodeParams[lookupParams](request.Params)
		if err != nil {
			return nil, err
		}
		if _, ok := r.Lookup(params.Name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotBound, params.Name)
		}
		return nil, nil
	case actionList:
		return r.Names(), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, request.Action)
	}
}

func (r *Registry) writeResponse(conn net.Conn, response Response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		r.log.Debug().Err(err).Msg("Failed to write response")
	}
}
