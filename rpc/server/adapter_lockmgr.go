package server

import (
	"math"
	"sync"
	"time"

	"github.com/ValentinKolb/livelock/lib/lockmgr"
	"github.com/ValentinKolb/livelock/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// maxTimeoutMillis is the largest ReleaseAll timeout that fits into a time.Duration
const maxTimeoutMillis = uint64(math.MaxInt64 / int64(time.Millisecond))

// NewLockStorageServerAdapter creates an adapter that serves the given lock storage
func NewLockStorageServerAdapter(storage lockmgr.ILockStorage) IRPCServerAdapter {
	return &lockStorageServerAdapter{
		storage:  storage,
		sessions: xsync.NewMapOf[uint64, *session](),
		clients:  make(map[string]int),
	}
}

// session is a single connection, it is bound to a client by the Hello request
type session struct {
	remoteAddr string

	mu       sync.Mutex
	clientID string
}

func (s *session) client() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

type lockStorageServerAdapter struct {
	storage  lockmgr.ILockStorage
	sessions *xsync.MapOf[uint64, *session]

	// mu orders the binding and closing of sessions with the ReleaseAll/UnreleaseAll calls they cause
	mu      sync.Mutex
	clients map[string]int // number of bound sessions per client
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IRPCServerAdapter)
// --------------------------------------------------------------------------

func (a *lockStorageServerAdapter) OpenSession(sessionID uint64, remoteAddr string) {
	a.sessions.Store(sessionID, &session{remoteAddr: remoteAddr})
	Logger.Debugf("Opened session %d from %s", sessionID, remoteAddr)
}

func (a *lockStorageServerAdapter) CloseSession(sessionID uint64) {
	sess, ok := a.sessions.LoadAndDelete(sessionID)
	if !ok {
		return
	}

	clientID := sess.client()
	if clientID == "" {
		Logger.Debugf("Closed unbound session %d", sessionID)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.clients[clientID]--
	if a.clients[clientID] > 0 {
		Logger.Debugf("Closed session %d of client %s, %d sessions left", sessionID, clientID, a.clients[clientID])
		return
	}

	// The last connection of the client is gone, its locks expire after the grace period
	delete(a.clients, clientID)
	a.storage.ReleaseAll(clientID, 0)
	Logger.Infof("Client %s disconnected, scheduled release of its locks", clientID)
}

func (a *lockStorageServerAdapter) Handle(sessionID uint64, req *common.Message) (resp *common.Message) {
	sess, ok := a.sessions.Load(sessionID)
	if !ok {
		return errorResponse(common.RetCNoSession, "unknown session %d", sessionID)
	}

	if req.MsgType == common.MsgTHello {
		return a.hello(sess, req)
	}

	clientID := sess.client()
	if clientID == "" {
		return errorResponse(common.RetCNoSession, "%s requires a hello first", req.MsgType)
	}

	switch req.MsgType {
	case common.MsgTAcquire:
		if req.Key == "" {
			return errorResponse(common.RetCInvalidOperation, "lock id must not be empty")
		}
		return common.NewAcquireResponse(a.storage.Acquire(clientID, req.Key, req.Reentrant), nil)

	case common.MsgTRelease:
		if req.Key == "" {
			return errorResponse(common.RetCInvalidOperation, "lock id must not be empty")
		}
		return common.NewReleaseResponse(a.storage.Release(clientID, req.Key), nil)

	case common.MsgTReleaseAll:
		if req.Timeout > maxTimeoutMillis {
			return errorResponse(common.RetCInvalidOperation, "timeout of %d ms exceeds the maximum of %d ms", req.Timeout, maxTimeoutMillis)
		}
		a.storage.ReleaseAll(clientID, time.Duration(req.Timeout)*time.Millisecond)
		return common.NewReleaseAllResponse(nil)

	case common.MsgTUnreleaseAll:
		a.storage.UnreleaseAll(clientID)
		return common.NewUnreleaseAllResponse(nil)

	case common.MsgTLocked:
		if req.Key == "" {
			return errorResponse(common.RetCInvalidOperation, "lock id must not be empty")
		}
		return common.NewLockedResponse(a.storage.Locked(req.Key), nil)

	case common.MsgTFind:
		items := []common.LockItem{}
		for id, acquiredAt := range a.storage.Find(req.Key) {
			items = append(items, common.LockItem{ID: id, AcquiredAt: acquiredAt.UTC()})
		}
		return common.NewFindResponse(items, nil)

	case common.MsgTAddSignal, common.MsgTHasSignal, common.MsgTRemoveSignal:
		return a.signal(req)

	case common.MsgTClientAddress:
		address, found := a.storage.GetClientLastAddress(req.ClientID)
		return common.NewClientAddressResponse(address, found, nil)

	default:
		return errorResponse(common.RetCInvalidOperation, "unsupported message type: %s", req.MsgType)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// hello binds the session to a client. A reconnecting client reclaims its locks.
func (a *lockStorageServerAdapter) hello(sess *session, req *common.Message) *common.Message {
	if req.ClientID == "" {
		return errorResponse(common.RetCInvalidOperation, "client id must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	sess.mu.Lock()
	current := sess.clientID
	if current == "" {
		sess.clientID = req.ClientID
	}
	sess.mu.Unlock()

	if current != "" && current != req.ClientID {
		return errorResponse(common.RetCInvalidOperation, "session is already bound to client %s", current)
	}
	if current == "" {
		a.clients[req.ClientID]++
	}

	a.storage.SetClientLastAddress(req.ClientID, sess.remoteAddr)
	a.storage.UnreleaseAll(req.ClientID)
	Logger.Debugf("Client %s connected from %s", req.ClientID, sess.remoteAddr)

	return common.NewHelloResponse(nil)
}

// signal handles the three signal operations
func (a *lockStorageServerAdapter) signal(req *common.Message) *common.Message {
	if req.Key == "" || req.Value == "" {
		return errorResponse(common.RetCInvalidOperation, "lock id and signal must not be empty")
	}

	var res lockmgr.Result
	switch req.MsgType {
	case common.MsgTAddSignal:
		res = a.storage.AddSignal(req.Key, req.Value)
	case common.MsgTHasSignal:
		res = a.storage.HasSignal(req.Key, req.Value)
	default:
		res = a.storage.RemoveSignal(req.Key, req.Value)
	}
	return common.NewSignalResponse(req.MsgType, res.Bool(), res.Found(), nil)
}

// errorResponse creates an error response with a return code
func errorResponse(code common.RetCode, format string, args ...any) *common.Message {
	return common.NewErrorResponse(common.NewError(code, format, args...).Error())
}
