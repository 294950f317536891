package chainabstraction

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"chainhub.backend/internal/domain/providers"
	"chainhub.backend/pkg/logger"
)

// statusSubscriber maintains one websocket stream per subscribed operation
// set. The provider pushes updates; nothing here polls. Handlers must not
// block: slow consumers queue on their own worker, not on the read loop.
type statusSubscriber struct {
	wsURL  string
	apiKey string
	dialer *websocket.Dialer

	mu    sync.Mutex
	conns map[string]*websocket.Conn
	done  chan struct{}
	once  sync.Once
}

func newStatusSubscriber(wsURL, apiKey string) *statusSubscriber {
	return &statusSubscriber{
		wsURL:  wsURL,
		apiKey: apiKey,
		dialer: websocket.DefaultDialer,
		conns:  make(map[string]*websocket.Conn),
		done:   make(chan struct{}),
	}
}

// subscribe opens a stream for the operation set and feeds updates to the
// handler until a terminal status arrives or the subscriber closes.
func (s *statusSubscriber) subscribe(ctx context.Context, operationSetID string, handler func(providers.StatusUpdate)) error {
	header := http.Header{}
	if s.apiKey != "" {
		header.Set("Authorization", "Bearer "+s.apiKey)
	}

	conn, _, err := s.dialer.DialContext(ctx, s.wsURL+"?operationSetId="+operationSetID, header)
	if err != nil {
		return err
	}

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		conn.Close()
		return nil
	default:
	}
	s.conns[operationSetID] = conn
	s.mu.Unlock()

	go s.readLoop(operationSetID, conn, handler)
	return nil
}

func (s *statusSubscriber) readLoop(operationSetID string, conn *websocket.Conn, handler func(providers.StatusUpdate)) {
	defer func() {
		s.mu.Lock()
		if s.conns[operationSetID] == conn {
			delete(s.conns, operationSetID)
		}
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var update providers.StatusUpdate
		if err := conn.ReadJSON(&update); err != nil {
			select {
			case <-s.done:
			default:
				logger.Warn(context.Background(), "status stream closed",
					zap.String("operation_set_id", operationSetID),
					zap.Error(err),
				)
			}
			return
		}
		if update.OperationSetID == "" {
			update.OperationSetID = operationSetID
		}
		handler(update)
		if update.Status == providers.UpdateStatusCompleted || update.Status == providers.UpdateStatusFailed {
			return
		}
	}
}

// close tears down every open stream
func (s *statusSubscriber) close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		for id, conn := range s.conns {
			conn.Close()
			delete(s.conns, id)
		}
		s.mu.Unlock()
	})
}
